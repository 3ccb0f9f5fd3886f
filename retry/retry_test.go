package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/outcall"
)

type req struct {
	id         string
	idempotent bool
	budget     int64
}

func (r req) RequestID() string                { return r.id }
func (r req) IsIdempotent() bool               { return r.idempotent }
func (r req) MaxResponseBytes() int64          { return r.budget }
func (r req) WithMaxResponseBytes(n int64) req { r.budget = n; return r }

// flaky fails with errs in order, then succeeds.
func flaky(calls *atomic.Int32, errs ...error) outcall.Service[req, string] {
	return outcall.ServiceFunc[req, string](func(ctx context.Context, _ req) (string, error) {
		n := int(calls.Add(1))
		if n <= len(errs) {
			return "", errs[n-1]
		}
		return "ok", nil
	})
}

var fast = Policy{
	MaxAttempts:    5,
	MaxElapsed:     2 * time.Second,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
}

var netErr = &outcall.TransportError{Kind: outcall.TransportNetwork, Message: "connection reset"}

func TestRetriesTransientFailureOfIdempotentRequest(t *testing.T) {
	var calls atomic.Int32
	svc := New[req, string](Options{Policy: fast})(flaky(&calls, netErr, netErr))

	got, err := svc.Call(context.Background(), req{id: "1", idempotent: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestNonIdempotentRequestIsAttemptedOnce(t *testing.T) {
	var calls atomic.Int32
	svc := New[req, string](Options{Policy: fast})(flaky(&calls, netErr, netErr))

	_, err := svc.Call(context.Background(), req{id: "1"})
	assert.Same(t, netErr, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestApplicationErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	appErr := &outcall.ApplicationError{Code: -32000, Message: "execution reverted"}
	svc := New[req, string](Options{Policy: fast})(flaky(&calls, appErr))

	_, err := svc.Call(context.Background(), req{idempotent: true})
	var got *outcall.ApplicationError
	require.ErrorAs(t, err, &got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestAttemptsNeverExceedMax(t *testing.T) {
	var calls atomic.Int32
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = netErr
	}
	svc := New[req, string](Options{Policy: fast})(flaky(&calls, errs...))

	_, err := svc.Call(context.Background(), req{idempotent: true})
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 5, ex.Attempts)
	assert.EqualValues(t, 5, calls.Load())
	assert.Equal(t, outcall.KindTransport, outcall.KindOf(err))
	assert.Equal(t, "transport_error:network", outcall.Label(err))
}

func TestElapsedNeverExceedsDeadline(t *testing.T) {
	hang := outcall.ServiceFunc[req, string](func(ctx context.Context, _ req) (string, error) {
		<-ctx.Done()
		return "", outcall.AsTimeout(ctx.Err())
	})
	p := Policy{MaxAttempts: 100, MaxElapsed: 50 * time.Millisecond, InitialBackoff: time.Millisecond}
	svc := New[req, string](Options{Policy: p})(hang)

	start := time.Now()
	_, err := svc.Call(context.Background(), req{idempotent: true})
	elapsed := time.Since(start)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, ex.Attempts)
	var trErr *outcall.TransportError
	require.ErrorAs(t, err, &trErr)
	assert.True(t, trErr.Timeout())
	assert.Less(t, elapsed, 50*time.Millisecond+40*time.Millisecond)
}

func TestDoesNotSleepPastDeadline(t *testing.T) {
	var calls atomic.Int32
	p := Policy{MaxAttempts: 10, MaxElapsed: 30 * time.Millisecond, InitialBackoff: time.Second, MaxBackoff: time.Second}
	svc := New[req, string](Options{Policy: p})(flaky(&calls, netErr, netErr))

	start := time.Now()
	_, err := svc.Call(context.Background(), req{idempotent: true})
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.EqualValues(t, 1, calls.Load())
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestCancellationAbortsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	svc := New[req, string](Options{
		Policy: Policy{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: time.Second},
		OnRetry: func(any, int, error, time.Duration) {
			cancel()
		},
	})(flaky(&calls, netErr, netErr))

	_, err := svc.Call(ctx, req{idempotent: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOnRetryObservesEachBackoff(t *testing.T) {
	var calls atomic.Int32
	var seen []int
	svc := New[req, string](Options{
		Policy:  fast,
		OnRetry: func(_ any, attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) },
	})(flaky(&calls, netErr, netErr))

	_, err := svc.Call(context.Background(), req{idempotent: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoubleMaxResponseBytes(t *testing.T) {
	var budgets []int64
	base := outcall.ServiceFunc[req, string](func(_ context.Context, r req) (string, error) {
		budgets = append(budgets, r.budget)
		if r.budget < 4000 {
			return "", &outcall.TransportError{Kind: outcall.TransportResponseTooLarge}
		}
		return "big", nil
	})
	svc := DoubleMaxResponseBytes[req, string](2_000_000, nil)(base)

	got, err := svc.Call(context.Background(), req{idempotent: true, budget: 1000})
	require.NoError(t, err)
	assert.Equal(t, "big", got)
	assert.Equal(t, []int64{1000, 2000, 4000}, budgets)
}

func TestDoubleMaxResponseBytesStopsAtLimit(t *testing.T) {
	var budgets []int64
	base := outcall.ServiceFunc[req, string](func(_ context.Context, r req) (string, error) {
		budgets = append(budgets, r.budget)
		return "", &outcall.TransportError{Kind: outcall.TransportResponseTooLarge}
	})
	svc := DoubleMaxResponseBytes[req, string](3000, nil)(base)

	_, err := svc.Call(context.Background(), req{idempotent: true, budget: 1000})
	assert.Equal(t, "transport_error:response_too_large", outcall.Label(err))
	assert.Equal(t, []int64{1000, 2000, 3000}, budgets)

	budgets = nil
	_, _ = svc.Call(context.Background(), req{budget: 1000})
	assert.Equal(t, []int64{1000}, budgets, "non-idempotent requests are never re-issued")
}

func TestExhaustedErrorUnwraps(t *testing.T) {
	inner := &outcall.DecodingError{Reason: "bad"}
	err := error(&ExhaustedError{Attempts: 2, Err: inner})
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "2 attempt(s)")
}
