// Package wstransport implements transport.Transport over a WebSocket: one
// connection, one text message out, one message back. Useful for JSON-RPC
// providers that only expose ws:// or wss:// endpoints.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/transport"
	"nhooyr.io/websocket"
)

// Transport dials per call. It keeps no connection between calls, so every
// call is an independent attempt.
type Transport struct {
	client *http.Client
}

var _ transport.Transport = (*Transport)(nil)

func New(c *http.Client) *Transport {
	return &Transport{client: c}
}

func (t *Transport) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	ctx, cancel := transport.WithTimeout(ctx, req)
	defer cancel()

	conn, hresp, err := websocket.Dial(ctx, req.URL, &websocket.DialOptions{
		HTTPClient: t.client,
		HTTPHeader: req.Header,
	})
	if err != nil {
		if hresp != nil && hresp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &outcall.TransportError{
				Kind:       outcall.TransportStatus,
				StatusCode: hresp.StatusCode,
				Message:    "websocket handshake rejected",
				Err:        err,
			}
		}
		return nil, classify(ctx, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	budget := req.ByteBudget()
	conn.SetReadLimit(budget)

	if err := conn.Write(ctx, websocket.MessageText, req.Body); err != nil {
		return nil, classify(ctx, err)
	}
	_, body, err := conn.Read(ctx)
	if err != nil {
		if isReadLimit(err) {
			return nil, &outcall.TransportError{
				Kind:    outcall.TransportResponseTooLarge,
				Message: fmt.Sprintf("message exceeds size limit of %d bytes", budget),
				Err:     err,
			}
		}
		return nil, classify(ctx, err)
	}
	return &transport.Response{StatusCode: http.StatusOK, Body: body}, nil
}

// nhooyr reports an exceeded read limit only through the error text.
func isReadLimit(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusMessageTooBig ||
		strings.Contains(err.Error(), "read limited at")
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return outcall.NewTimeoutError("websocket call", err)
	default:
		return &outcall.TransportError{Kind: outcall.TransportNetwork, Err: err}
	}
}
