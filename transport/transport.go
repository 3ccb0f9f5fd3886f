// Package transport defines the single-attempt outbound call primitive the
// pipeline is built on. Transports never retry; retries belong to the retry layer.
//
// Implementations MUST:
//   - honor ctx and Request.Timeout, returning a TransportError of kind
//     TransportTimeout on expiry;
//   - refuse bodies larger than Request.MaxResponseBytes with kind
//     TransportResponseTooLarge;
//   - return the raw body unchanged, whatever the status code.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/unkn0wn-root/outcall"
)

// DefaultMaxResponseBytes is used when a request sets no byte budget.
const DefaultMaxResponseBytes int64 = 2_000_000

// Request is one outbound call.
type Request struct {
	Method           string // HTTP method; POST when empty
	URL              string
	Header           http.Header
	Body             []byte
	Timeout          time.Duration // per attempt; 0 => only ctx bounds the call
	MaxResponseBytes int64         // 0 => DefaultMaxResponseBytes
	CorrelationID    string        // JSON-RPC id of the payload, for logs and records
}

func (r *Request) RequestID() string { return r.CorrelationID }

// ByteBudget returns the effective response size limit.
func (r *Request) ByteBudget() int64 {
	if r.MaxResponseBytes <= 0 {
		return DefaultMaxResponseBytes
	}
	return r.MaxResponseBytes
}

// Response is the raw answer of a transport.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport is the external primitive: one asynchronous attempt with a timeout and a byte budget.
type Transport = outcall.Service[*Request, *Response]

// Func adapts a function to Transport.
type Func = outcall.ServiceFunc[*Request, *Response]

// WithTimeout derives the per-attempt context for req.
func WithTimeout(ctx context.Context, req *Request) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	return context.WithCancel(ctx)
}

// Describe reports transport-level ids and sizes to the observability layer.
type Describe struct{}

func (Describe) RequestID(r *Request) string { return r.CorrelationID }
func (Describe) Method(r *Request) string    { return r.Method }
func (Describe) RequestSize(r *Request) int  { return len(r.Body) }
func (Describe) ResponseSize(r *Response) int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}

// InvalidRequestError is returned when a request cannot even be issued
// (bad URL, unsupported method). It is not retryable.
type InvalidRequestError struct {
	URL string
	Err error
}

func (e *InvalidRequestError) Error() string {
	return "transport: invalid request for " + e.URL + ": " + e.Err.Error()
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }
