package multi

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/retry"
)

// Reducer turns the outcomes of one multi-call into a single decision.
type Reducer[K comparable, V any] interface {
	Reduce(r *Results[K, V]) (V, error)
}

type ReducerFunc[K comparable, V any] func(r *Results[K, V]) (V, error)

func (f ReducerFunc[K, V]) Reduce(r *Results[K, V]) (V, error) { return f(r) }

// ReductionKind says why no value was agreed on.
type ReductionKind int

const (
	// ConsistentError: every provider failed with the same error.
	ConsistentError ReductionKind = iota + 1
	// InconsistentResults: providers disagreed and no value reached the threshold.
	InconsistentResults
)

func (k ReductionKind) String() string {
	switch k {
	case ConsistentError:
		return "consistent_error"
	case InconsistentResults:
		return "inconsistent_results"
	default:
		return "unknown"
	}
}

// ReductionError is returned by the reducers of this package. For
// ConsistentError, Err is the shared error; for InconsistentResults, Results
// carries every outcome so the caller can inspect the disagreement.
type ReductionError[K comparable, V any] struct {
	Kind    ReductionKind
	Err     error
	Results *Results[K, V]
}

func (e *ReductionError[K, V]) Error() string {
	if e.Kind == ConsistentError {
		return fmt.Sprintf("outcall: all providers failed: %v", e.Err)
	}
	return fmt.Sprintf("outcall: inconsistent results from %d provider(s)", e.Results.Len())
}

func (e *ReductionError[K, V]) Unwrap() error { return e.Err }

var (
	// ErrEmptyResults is returned when reducing Results with no entries.
	ErrEmptyResults = errors.New("outcall: no results to reduce")
	ErrDuplicateKey = errors.New("outcall: duplicate provider key")
)

// ErrorKey is the equality used for errors: two errors are the same when
// their labels and messages are. Retry exhaustion is looked through, so the
// attempt count and elapsed time do not split otherwise identical failures.
func ErrorKey(err error) string {
	var ex *retry.ExhaustedError
	for errors.As(err, &ex) {
		err = ex.Err
	}
	if err == nil {
		return ""
	}
	return outcall.Label(err) + ": " + err.Error()
}

// ReduceWithEquality accepts a value only when every provider returned it.
// keyOf defines value equality.
func ReduceWithEquality[K comparable, V any](keyOf func(V) string) Reducer[K, V] {
	return ReducerFunc[K, V](func(r *Results[K, V]) (V, error) {
		return reduceWithThreshold(r, r.Len(), keyOf)
	})
}

// ReduceWithThreshold accepts the most voted value when at least threshold
// providers returned it. keyOf defines value equality.
func ReduceWithThreshold[K comparable, V any](threshold int, keyOf func(V) string) Reducer[K, V] {
	return ReducerFunc[K, V](func(r *Results[K, V]) (V, error) {
		return reduceWithThreshold(r, threshold, keyOf)
	})
}

func reduceWithThreshold[K comparable, V any](r *Results[K, V], threshold int, keyOf func(V) string) (V, error) {
	var zero V
	if r.Len() == 0 {
		return zero, ErrEmptyResults
	}
	if threshold < 1 {
		threshold = 1
	}

	st := r.Stats(keyOf)
	if len(st.Distribution) > 0 && st.Distribution[0].Count() >= threshold {
		return st.Distribution[0].Value, nil
	}

	if st.OkCount == 0 {
		first := r.entries[0].Err
		same := true
		for _, e := range r.entries[1:] {
			if ErrorKey(e.Err) != ErrorKey(first) {
				same = false
				break
			}
		}
		if same {
			return zero, &ReductionError[K, V]{Kind: ConsistentError, Err: first}
		}
	}
	return zero, &ReductionError[K, V]{Kind: InconsistentResults, Results: r}
}
