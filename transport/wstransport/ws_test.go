package wstransport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/transport"
)

// wsServer reads one message and answers with reply(msg).
func wsServer(t *testing.T, reply func([]byte) []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		_, msg, err := c.Read(r.Context())
		if err != nil {
			return
		}
		_ = c.Write(r.Context(), websocket.MessageText, reply(msg))
		// wait for the client to close
		_, _, _ = c.Read(r.Context())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoundTrip(t *testing.T) {
	url := wsServer(t, func(msg []byte) []byte { return append([]byte("echo:"), msg...) })
	resp, err := New(nil).Call(context.Background(), &transport.Request{
		URL:     url,
		Body:    []byte(`{"jsonrpc":"2.0","method":"eth_chainId","params":[],"id":"00000000000000000001"}`),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(resp.Body, []byte("echo:{")) {
		t.Fatalf("resp=%d %s", resp.StatusCode, resp.Body)
	}
}

func TestOversizedMessage(t *testing.T) {
	url := wsServer(t, func([]byte) []byte { return bytes.Repeat([]byte("x"), 4096) })
	_, err := New(nil).Call(context.Background(), &transport.Request{
		URL:              url,
		Body:             []byte("{}"),
		MaxResponseBytes: 1024,
		Timeout:          2 * time.Second,
	})
	var trErr *outcall.TransportError
	if !errors.As(err, &trErr) || trErr.Kind != outcall.TransportResponseTooLarge {
		t.Fatalf("err=%v", err)
	}
}

func TestHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err := New(nil).Call(context.Background(), &transport.Request{URL: srv.URL, Body: []byte("{}")})
	var trErr *outcall.TransportError
	if !errors.As(err, &trErr) || trErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
}
