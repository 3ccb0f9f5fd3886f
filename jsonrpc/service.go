package jsonrpc

import (
	"context"
	"net/http"
	"time"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/transport"
)

// Endpoint is one JSON-RPC provider reachable through a transport.
type Endpoint struct {
	URL              string
	Header           http.Header
	Timeout          time.Duration // per attempt, unless the request sets one
	MaxResponseBytes int64         // unless the request sets one
}

// Service is the converter layer: typed requests in, typed responses out,
// raw bytes through the transport below.
type Service struct {
	endpoint Endpoint
	next     transport.Transport
	ids      *IDGenerator
	log      outcall.Logger
}

var _ outcall.Service[*Request, *Response] = (*Service)(nil)

type ServiceOption func(*Service)

// WithIDGenerator replaces the process-wide generator used for requests without an id.
func WithIDGenerator(g *IDGenerator) ServiceOption { return func(s *Service) { s.ids = g } }

func WithLogger(l outcall.Logger) ServiceOption { return func(s *Service) { s.log = outcall.LoggerOrNop(l) } }

func NewService(ep Endpoint, next transport.Transport, opts ...ServiceOption) *Service {
	s := &Service{endpoint: ep, next: next, ids: &defaultIDs, log: outcall.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Call(ctx context.Context, req *Request) (*Response, error) {
	if req.ID().IsZero() {
		req = req.WithID(s.ids.Next())
	}
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	treq := &transport.Request{
		Method:           http.MethodPost,
		URL:              s.endpoint.URL,
		Header:           withContentType(s.endpoint.Header),
		Body:             body,
		Timeout:          coalesce(req.Timeout(), s.endpoint.Timeout),
		MaxResponseBytes: coalesce(req.MaxResponseBytes(), s.endpoint.MaxResponseBytes),
		CorrelationID:    req.RequestID(),
	}
	tresp, err := s.next.Call(ctx, treq)
	if err != nil {
		return nil, outcall.AsTimeout(err)
	}

	resp, err := decodeResponse(tresp.Body, req.ID(), tresp.StatusCode)
	if err != nil {
		s.log.Debug("jsonrpc response rejected", outcall.Fields{
			"id": req.RequestID(), "method": req.Method(), "status": tresp.StatusCode, "err": err,
		})
		return nil, err
	}
	if appErr := resp.AsError(); appErr != nil {
		return nil, appErr
	}
	return resp, nil
}

// withContentType adds the JSON content type unless the endpoint set one.
func withContentType(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header, 1)
	}
	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", "application/json")
	}
	return out
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Describe reports ids, methods and sizes of JSON-RPC calls to the observability layer.
type Describe struct{}

func (Describe) RequestID(r *Request) string { return r.RequestID() }
func (Describe) Method(r *Request) string    { return r.Method() }

func (Describe) RequestSize(r *Request) int {
	b, err := EncodeRequest(r)
	if err != nil {
		return 0
	}
	return len(b)
}

func (Describe) ResponseSize(r *Response) int {
	if r == nil {
		return 0
	}
	return r.Size()
}
