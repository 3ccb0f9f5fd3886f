package outcall

import "context"

// Service is the single capability every layer implements.
// Implementations must be safe for concurrent use.
type Service[Req, Resp any] interface {
	Call(ctx context.Context, req Req) (Resp, error)
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

func (f ServiceFunc[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}

// Middleware wraps a Service with one concern and returns a Service of the same shape.
type Middleware[Req, Resp any] func(next Service[Req, Resp]) Service[Req, Resp]

// Chain wraps base with mws. The first middleware is the outermost one,
// so Chain(base, a, b) handles a request as a -> b -> base.
func Chain[Req, Resp any](base Service[Req, Resp], mws ...Middleware[Req, Resp]) Service[Req, Resp] {
	s := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		s = mws[i](s)
	}
	return s
}

// Identified is implemented by requests that carry a correlation id.
// All layers leave it readable end-to-end.
type Identified interface {
	RequestID() string
}

// Idempotent is implemented by requests that carry the caller-declared
// idempotency flag. The flag is never inferred.
type Idempotent interface {
	IsIdempotent() bool
}

// RequestID returns the correlation id of req, or "" when req has none.
func RequestID(req any) string {
	if r, ok := req.(Identified); ok {
		return r.RequestID()
	}
	return ""
}

// IsIdempotent reports the declared flag of req; requests without one are not idempotent.
func IsIdempotent(req any) bool {
	if r, ok := req.(Idempotent); ok {
		return r.IsIdempotent()
	}
	return false
}
