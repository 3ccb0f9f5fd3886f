package multi

import (
	"fmt"
	"sort"

	"github.com/unkn0wn-root/outcall"
)

// Result is the terminal outcome of one provider: a value or an error.
type Result[K comparable, V any] struct {
	Key   K
	Value V
	Err   error
}

func (r Result[K, V]) OK() bool { return r.Err == nil }

// Results holds one outcome per provider in invocation order. Keys are
// unique. Once populated it is never reordered or trimmed.
type Results[K comparable, V any] struct {
	// ID correlates the provider calls of one multi-call in logs.
	ID      string
	entries []Result[K, V]
	index   map[K]int
}

// NewResults builds Results from entries in the given order.
// It fails on a duplicate key.
func NewResults[K comparable, V any](entries ...Result[K, V]) (*Results[K, V], error) {
	r := &Results[K, V]{entries: make([]Result[K, V], 0, len(entries)), index: make(map[K]int, len(entries))}
	for _, e := range entries {
		if err := r.add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Results[K, V]) add(e Result[K, V]) error {
	if _, dup := r.index[e.Key]; dup {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, e.Key)
	}
	r.index[e.Key] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

func (r *Results[K, V]) Len() int { return len(r.entries) }

// Keys returns the provider keys in invocation order.
func (r *Results[K, V]) Keys() []K {
	out := make([]K, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Key
	}
	return out
}

// Get returns the outcome of provider k.
func (r *Results[K, V]) Get(k K) (Result[K, V], bool) {
	i, ok := r.index[k]
	if !ok {
		return Result[K, V]{}, false
	}
	return r.entries[i], true
}

// Range calls fn for each outcome in invocation order until fn returns false.
func (r *Results[K, V]) Range(fn func(Result[K, V]) bool) {
	for _, e := range r.entries {
		if !fn(e) {
			return
		}
	}
}

// All returns a copy of every outcome in invocation order.
func (r *Results[K, V]) All() []Result[K, V] {
	return append([]Result[K, V](nil), r.entries...)
}

// Ok returns the successful outcomes in invocation order.
func (r *Results[K, V]) Ok() []Result[K, V] { return r.filter(true) }

// Errors returns the failed outcomes in invocation order.
func (r *Results[K, V]) Errors() []Result[K, V] { return r.filter(false) }

func (r *Results[K, V]) filter(ok bool) []Result[K, V] {
	var out []Result[K, V]
	for _, e := range r.entries {
		if e.OK() == ok {
			out = append(out, e)
		}
	}
	return out
}

// Vote is one distinct successful value and the providers that returned it.
type Vote[K comparable, V any] struct {
	Key       string // canonical form used for equality
	Value     V      // value of the first provider that returned it
	Providers []K
}

func (v Vote[K, V]) Count() int { return len(v.Providers) }

// Stats summarises Results for consensus decisions.
type Stats[K comparable, V any] struct {
	OkCount    int
	ErrorCount int
	// ErrorKinds counts failures by outcall.Label, e.g. "transport_error:timeout".
	ErrorKinds map[string]int
	// Distribution lists distinct successful values, most voted first; ties
	// keep first-seen order.
	Distribution []Vote[K, V]
}

// Stats groups successful values by keyOf. Values with the same key are
// considered equal.
func (r *Results[K, V]) Stats(keyOf func(V) string) Stats[K, V] {
	s := Stats[K, V]{ErrorKinds: make(map[string]int)}
	pos := make(map[string]int)
	for _, e := range r.entries {
		if !e.OK() {
			s.ErrorCount++
			s.ErrorKinds[outcall.Label(e.Err)]++
			continue
		}
		s.OkCount++
		k := keyOf(e.Value)
		i, seen := pos[k]
		if !seen {
			i = len(s.Distribution)
			pos[k] = i
			s.Distribution = append(s.Distribution, Vote[K, V]{Key: k, Value: e.Value})
		}
		s.Distribution[i].Providers = append(s.Distribution[i].Providers, e.Key)
	}
	sort.SliceStable(s.Distribution, func(i, j int) bool {
		return s.Distribution[i].Count() > s.Distribution[j].Count()
	})
	return s
}

// Reduce applies red to r.
func (r *Results[K, V]) Reduce(red Reducer[K, V]) (V, error) {
	return red.Reduce(r)
}
