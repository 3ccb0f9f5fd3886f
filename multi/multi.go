// Package multi sends one logical request to several independent providers
// at once and collects every outcome.
//
// Call never collapses outcomes: the caller gets one Result per provider in
// invocation order and decides what counts as agreement, typically with
// ReduceWithEquality or ReduceWithThreshold.
package multi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/outcall"
)

// Target is one provider invocation: the provider's pipeline and the request
// to send it.
type Target[K comparable, Req, Resp any] struct {
	Key     K
	Service outcall.Service[Req, Resp]
	Req     Req
}

type Options struct {
	// PerCallTimeout bounds each provider call; 0 = only Deadline applies.
	PerCallTimeout time.Duration
	// Deadline bounds the whole multi-call. Providers still pending when it
	// expires are recorded as timeouts. 0 = wait for the slowest provider.
	Deadline time.Duration
	Logger   outcall.Logger
}

type outcome[Resp any] struct {
	i    int
	resp Resp
	err  error
}

// Call issues every target concurrently and waits for all of them or for the
// deadline, whichever comes first.
//
// It fails with ErrDuplicateKey before issuing anything when two targets share
// a key, and with context.Canceled when ctx is cancelled; partial outcomes
// are discarded in that case. When ctx or Deadline expires instead, targets
// still pending are recorded as timeouts. Otherwise the returned Results has
// exactly one entry per target in target order.
func Call[K comparable, Req, Resp any](ctx context.Context, targets []Target[K, Req, Resp], opts Options) (*Results[K, Resp], error) {
	l := outcall.LoggerOrNop(opts.Logger)

	res := &Results[K, Resp]{
		ID:      uuid.NewString(),
		entries: make([]Result[K, Resp], 0, len(targets)),
		index:   make(map[K]int, len(targets)),
	}
	for _, t := range targets {
		if err := res.add(Result[K, Resp]{Key: t.Key}); err != nil {
			return nil, err
		}
	}
	if len(targets) == 0 {
		return res, nil
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Deadline > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, opts.Deadline)
		defer cancel()
	}

	// Buffered so that stragglers abandoned at the deadline can still finish.
	done := make(chan outcome[Resp], len(targets))
	for i, t := range targets {
		go func(i int, t Target[K, Req, Resp]) {
			c := callCtx
			if opts.PerCallTimeout > 0 {
				var cancel context.CancelFunc
				c, cancel = context.WithTimeout(callCtx, opts.PerCallTimeout)
				defer cancel()
			}
			resp, err := t.Service.Call(c, t.Req)
			done <- outcome[Resp]{i: i, resp: resp, err: outcall.AsTimeout(err)}
		}(i, t)
	}

	pending := make([]bool, len(targets))
	for i := range pending {
		pending[i] = true
	}
	for left := len(targets); left > 0; left-- {
		select {
		case o := <-done:
			pending[o.i] = false
			res.entries[o.i].Value = o.resp
			res.entries[o.i].Err = o.err
		case <-callCtx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			for i, p := range pending {
				if p {
					res.entries[i].Err = outcall.NewTimeoutError("multi-call deadline exceeded", callCtx.Err())
				}
			}
			l.Debug("outcall.multi_deadline", outcall.Fields{"multi_id": res.ID, "pending": left})
			return res, nil
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	l.Debug("outcall.multi_done", outcall.Fields{"multi_id": res.ID, "providers": len(targets)})
	return res, nil
}
