// Package ratelimit paces outbound calls to one provider with a token bucket.
package ratelimit

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/outcall"
)

type Options struct {
	RPS    float64 // <= 0 disables limiting
	Burst  int     // default max(1, ceil(RPS))
	Logger outcall.Logger
}

// Limiter is shared by every call through the provider's pipeline.
type Limiter struct {
	l   *rate.Limiter
	log outcall.Logger
}

// New returns nil when opts.RPS <= 0. A nil *Limiter lets every call through.
func New(opts Options) *Limiter {
	if opts.RPS <= 0 {
		return nil
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = int(opts.RPS)
		if float64(burst) < opts.RPS {
			burst++
		}
	}
	return &Limiter{
		l:   rate.NewLimiter(rate.Limit(opts.RPS), burst),
		log: outcall.LoggerOrNop(opts.Logger),
	}
}

// Wait blocks until a token is available. A wait that cannot finish before
// the ctx deadline fails at once with a timeout TransportError.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	err := l.l.Wait(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return outcall.NewTimeoutError("rate limit wait exceeds deadline", err)
}

// Middleware waits for a token before every call reaches next.
func Middleware[Req, Resp any](l *Limiter) outcall.Middleware[Req, Resp] {
	if l == nil {
		return nil
	}
	return func(next outcall.Service[Req, Resp]) outcall.Service[Req, Resp] {
		return outcall.ServiceFunc[Req, Resp](func(ctx context.Context, req Req) (Resp, error) {
			if err := l.Wait(ctx); err != nil {
				l.log.Debug("outcall.rate_limited", outcall.Fields{"id": outcall.RequestID(req), "err": err})
				var zero Resp
				return zero, err
			}
			return next.Call(ctx, req)
		})
	}
}
