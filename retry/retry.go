// Package retry re-issues failed idempotent calls with exponential backoff.
//
// A call is retried only when the request declares itself idempotent and the
// failure is transient (see outcall.IsRetryable). Everything else fails after
// exactly one attempt. All attempts of one call, sleeps included, run under
// Policy.MaxElapsed.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unkn0wn-root/outcall"
)

// Policy bounds the attempts of one call.
type Policy struct {
	MaxAttempts    int           // total attempts including the first; default 3
	MaxElapsed     time.Duration // overall deadline for all attempts; default 10s
	InitialBackoff time.Duration // default 100ms
	MaxBackoff     time.Duration // default 2s
	Multiplier     float64       // default 2
	Jitter         float64       // randomization factor in [0,1]; 0 = none
}

// DefaultPolicy is used for zero fields of a Policy.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	MaxElapsed:     10 * time.Second,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
	Jitter:         0.2,
}

func (p Policy) withDefaults() Policy {
	p.MaxAttempts = coalesce(p.MaxAttempts, DefaultPolicy.MaxAttempts)
	p.MaxElapsed = coalesce(p.MaxElapsed, DefaultPolicy.MaxElapsed)
	p.InitialBackoff = coalesce(p.InitialBackoff, DefaultPolicy.InitialBackoff)
	p.MaxBackoff = coalesce(p.MaxBackoff, DefaultPolicy.MaxBackoff)
	p.Multiplier = coalesce(p.Multiplier, DefaultPolicy.Multiplier)
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// schedule returns the delay sequence for one call. Elapsed time is enforced
// by the caller's deadline, so the schedule itself never stops.
func (p Policy) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type Options struct {
	Policy Policy
	Logger outcall.Logger
	// Retryable overrides outcall.IsRetryable.
	Retryable func(error) bool
	// OnRetry, if set, runs before each backoff sleep.
	OnRetry func(req any, attempt int, err error, delay time.Duration)
}

// New returns the retry middleware.
func New[Req, Resp any](opts Options) outcall.Middleware[Req, Resp] {
	opts.Policy = opts.Policy.withDefaults()
	opts.Logger = outcall.LoggerOrNop(opts.Logger)
	if opts.Retryable == nil {
		opts.Retryable = outcall.IsRetryable
	}
	return func(next outcall.Service[Req, Resp]) outcall.Service[Req, Resp] {
		return &retrier[Req, Resp]{next: next, opts: opts}
	}
}

type retrier[Req, Resp any] struct {
	next outcall.Service[Req, Resp]
	opts Options
}

func (r *retrier[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	if !outcall.IsIdempotent(req) {
		return r.next.Call(ctx, req)
	}

	var zero Resp
	p := r.opts.Policy
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.MaxElapsed)
	defer cancel()
	deadline, _ := ctx.Deadline()
	sched := p.schedule()

	for attempt := 1; ; attempt++ {
		resp, err := r.next.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, ctx.Err()
		}
		if !r.opts.Retryable(err) {
			return zero, err
		}
		exhausted := func() (Resp, error) {
			e := &ExhaustedError{Attempts: attempt, Elapsed: time.Since(start), Err: outcall.AsTimeout(err)}
			r.opts.Logger.Warn("outcall.retry_exhausted", outcall.Fields{
				"id": outcall.RequestID(req), "attempts": attempt, "elapsed": e.Elapsed, "err": err,
			})
			return zero, e
		}
		if attempt >= p.MaxAttempts || ctx.Err() != nil {
			return exhausted()
		}

		delay := sched.NextBackOff()
		if delay == backoff.Stop || time.Until(deadline) <= delay {
			return exhausted()
		}
		if r.opts.OnRetry != nil {
			r.opts.OnRetry(req, attempt, err, delay)
		}
		r.opts.Logger.Debug("outcall.retry", outcall.Fields{
			"id": outcall.RequestID(req), "attempt": attempt, "delay": delay, "err": err,
		})
		if serr := sleep(ctx, delay); serr != nil {
			if errors.Is(serr, context.Canceled) {
				return zero, serr
			}
			return exhausted()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
