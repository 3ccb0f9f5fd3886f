package retry

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/outcall"
)

// Budgeted is a request carrying a response byte budget.
type Budgeted[Req any] interface {
	MaxResponseBytes() int64
	WithMaxResponseBytes(n int64) Req
}

// DoubleMaxResponseBytes re-issues an idempotent request that failed because
// its response exceeded the byte budget, doubling the budget each time until
// the call succeeds, fails differently, or the budget reaches limit.
// Requests without a budget already run at the transport default and are not
// re-issued.
func DoubleMaxResponseBytes[Req Budgeted[Req], Resp any](limit int64, l outcall.Logger) outcall.Middleware[Req, Resp] {
	l = outcall.LoggerOrNop(l)
	return func(next outcall.Service[Req, Resp]) outcall.Service[Req, Resp] {
		return outcall.ServiceFunc[Req, Resp](func(ctx context.Context, req Req) (Resp, error) {
			for {
				resp, err := next.Call(ctx, req)
				if err == nil || !tooLarge(err) || !outcall.IsIdempotent(req) {
					return resp, err
				}
				cur := req.MaxResponseBytes()
				if cur <= 0 || cur >= limit {
					return resp, err
				}
				grown := min(cur*2, limit)
				l.Debug("outcall.grow_response_budget", outcall.Fields{
					"id": outcall.RequestID(req), "from": cur, "to": grown,
				})
				req = req.WithMaxResponseBytes(grown)
			}
		})
	}
}

func tooLarge(err error) bool {
	var trErr *outcall.TransportError
	return errors.As(err, &trErr) && trErr.Kind == outcall.TransportResponseTooLarge
}
