package multi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/retry"
)

func identity(s string) string { return s }

type outcomeSpec struct {
	ok  string
	err string
}

func ok(v string) outcomeSpec   { return outcomeSpec{ok: v} }
func fail(e string) outcomeSpec { return outcomeSpec{err: e} }

func results(t *testing.T, specs ...outcomeSpec) *Results[int, string] {
	t.Helper()
	entries := make([]Result[int, string], len(specs))
	for i, s := range specs {
		entries[i] = Result[int, string]{Key: i, Value: s.ok}
		if s.err != "" {
			entries[i] = Result[int, string]{Key: i, Err: errors.New(s.err)}
		}
	}
	r, err := NewResults(entries...)
	require.NoError(t, err)
	return r
}

func reductionKind(t *testing.T, err error) ReductionKind {
	t.Helper()
	var redErr *ReductionError[int, string]
	require.ErrorAs(t, err, &redErr)
	return redErr.Kind
}

// replaced returns four copies of "same" with the given positions replaced.
func replaced(with map[int]outcomeSpec) []outcomeSpec {
	out := []outcomeSpec{ok("same"), ok("same"), ok("same"), ok("same")}
	for i, s := range with {
		out[i] = s
	}
	return out
}

func TestReduceEmpty(t *testing.T) {
	empty, _ := NewResults[int, string]()
	_, err := empty.Reduce(ReduceWithEquality[int, string](identity))
	assert.ErrorIs(t, err, ErrEmptyResults)
	_, err = empty.Reduce(ReduceWithThreshold[int, string](1, identity))
	assert.ErrorIs(t, err, ErrEmptyResults)
}

func TestReduceWithEquality(t *testing.T) {
	eq := ReduceWithEquality[int, string](identity)

	v, err := results(t, ok("same")).Reduce(eq)
	require.NoError(t, err)
	assert.Equal(t, "same", v)

	v, err = results(t, ok("same"), ok("same")).Reduce(eq)
	require.NoError(t, err)
	assert.Equal(t, "same", v)

	for _, specs := range [][]outcomeSpec{
		{fail("error")},
		{fail("error"), fail("error")},
	} {
		_, err := results(t, specs...).Reduce(eq)
		assert.Equal(t, ConsistentError, reductionKind(t, err))
		assert.EqualError(t, errors.Unwrap(err), "error")
	}

	inconsistent := [][]outcomeSpec{
		{fail("reject"), fail("transient")},
		{ok("hello"), ok("world")},
	}
	for _, odd := range []outcomeSpec{ok("different"), fail("offline")} {
		for i := 0; i < 4; i++ {
			inconsistent = append(inconsistent, replaced(map[int]outcomeSpec{i: odd}))
		}
	}
	for _, specs := range inconsistent {
		r := results(t, specs...)
		_, err := r.Reduce(eq)
		assert.Equal(t, InconsistentResults, reductionKind(t, err), "%v", specs)

		var redErr *ReductionError[int, string]
		require.ErrorAs(t, err, &redErr)
		assert.Same(t, r, redErr.Results)
	}
}

func TestReduceWithThresholdAgrees(t *testing.T) {
	th := ReduceWithThreshold[int, string](3, identity)

	v, err := results(t, replaced(nil)...).Reduce(th)
	require.NoError(t, err)
	assert.Equal(t, "same", v)

	for _, odd := range []outcomeSpec{ok("different"), fail("offline")} {
		for i := 0; i < 4; i++ {
			v, err := results(t, replaced(map[int]outcomeSpec{i: odd})...).Reduce(th)
			require.NoError(t, err)
			assert.Equal(t, "same", v)
		}
	}
}

func TestReduceWithThresholdDisagrees(t *testing.T) {
	check := func(threshold int, specs ...outcomeSpec) {
		t.Helper()
		_, err := results(t, specs...).Reduce(ReduceWithThreshold[int, string](threshold, identity))
		assert.Equal(t, InconsistentResults, reductionKind(t, err), "%v", specs)
	}

	// not enough results
	check(2, ok("same"))
	check(3, ok("same"), ok("same"))
	check(3, ok("same"), fail("offline"))

	// 2 out of 4 agree
	odds := []outcomeSpec{ok("different"), fail("offline")}
	for _, a := range odds {
		for _, b := range odds {
			for i := 0; i < 4; i++ {
				for j := 0; j < 4; j++ {
					if i != j {
						check(3, replaced(map[int]outcomeSpec{i: a, j: b})...)
					}
				}
			}
		}
	}

	// 1 out of 4 ok
	for i := 0; i < 4; i++ {
		specs := []outcomeSpec{fail("offline"), fail("offline"), fail("offline"), fail("offline")}
		specs[i] = ok("same")
		check(3, specs...)
	}
}

func TestReduceWithThresholdConsistentError(t *testing.T) {
	_, err := results(t, fail("offline"), fail("offline"), fail("offline"), fail("offline")).
		Reduce(ReduceWithThreshold[int, string](3, identity))
	assert.Equal(t, ConsistentError, reductionKind(t, err))
	assert.Contains(t, err.Error(), "offline")
}

func TestNewResultsRejectsDuplicates(t *testing.T) {
	_, err := NewResults(Result[int, string]{Key: 1}, Result[int, string]{Key: 1})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestConsistentErrorIgnoresRetryTiming(t *testing.T) {
	refused := func() error {
		return &outcall.TransportError{Kind: outcall.TransportNetwork, Err: errors.New("connection refused")}
	}
	r, err := NewResults(
		Result[int, string]{Key: 0, Err: &retry.ExhaustedError{Attempts: 3, Elapsed: 312 * time.Millisecond, Err: refused()}},
		Result[int, string]{Key: 1, Err: &retry.ExhaustedError{Attempts: 2, Elapsed: 318 * time.Millisecond, Err: refused()}},
	)
	require.NoError(t, err)

	for _, red := range []Reducer[int, string]{
		ReduceWithThreshold[int, string](1, identity),
		ReduceWithEquality[int, string](identity),
	} {
		_, err := r.Reduce(red)
		assert.Equal(t, ConsistentError, reductionKind(t, err))
	}

	// same message, different kind
	mixed, err := NewResults(
		Result[int, string]{Key: 0, Err: refused()},
		Result[int, string]{Key: 1, Err: errors.New("transport network: connection refused")},
	)
	require.NoError(t, err)
	_, err = mixed.Reduce(ReduceWithEquality[int, string](identity))
	assert.Equal(t, InconsistentResults, reductionKind(t, err))
}
