// Package httptransport implements transport.Transport over net/http.
// Connection pooling and TLS are whatever the supplied *http.Client does.
package httptransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/transport"
)

// Transport issues exactly one HTTP request per Call.
type Transport struct {
	client *http.Client
}

var _ transport.Transport = (*Transport)(nil)

// New returns a transport using c, or http.DefaultClient when c is nil.
func New(c *http.Client) *Transport {
	if c == nil {
		c = http.DefaultClient
	}
	return &Transport{client: c}
}

func (t *Transport) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	ctx, cancel := transport.WithTimeout(ctx, req)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &transport.InvalidRequestError{URL: req.URL, Err: err}
	}
	for name, values := range req.Header {
		for _, v := range values {
			hreq.Header.Add(name, v)
		}
	}

	hresp, err := t.client.Do(hreq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer hresp.Body.Close()

	budget := req.ByteBudget()
	if hresp.ContentLength > budget {
		return nil, tooLarge(hresp.ContentLength, budget)
	}
	body, err := io.ReadAll(io.LimitReader(hresp.Body, budget+1))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if int64(len(body)) > budget {
		return nil, tooLarge(int64(len(body)), budget)
	}
	return &transport.Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       body,
	}, nil
}

func tooLarge(got, budget int64) error {
	return &outcall.TransportError{
		Kind:    outcall.TransportResponseTooLarge,
		Message: fmt.Sprintf("response exceeds size limit: %d > %d bytes", got, budget),
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return outcall.NewTimeoutError("http call", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return outcall.NewTimeoutError("http call", err)
	}
	return &outcall.TransportError{Kind: outcall.TransportNetwork, Err: err}
}
