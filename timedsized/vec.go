package timedsized

import (
	"sync"
	"time"
)

type item[T any] struct {
	at time.Time
	v  T
}

// Vec is an insertion-ordered sequence holding at most Capacity values, none
// older than TTL.
type Vec[T any] struct {
	mu       sync.Mutex
	items    []item[T] // oldest first
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewVec panics if capacity is not positive.
func NewVec[T any](capacity int, ttl time.Duration, opts ...Option) *Vec[T] {
	checkCapacity(capacity)
	s := newSettings(opts)
	return &Vec[T]{
		items:    make([]item[T], 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      s.now,
	}
}

// Insert appends v, evicting the oldest value when full. It always succeeds.
func (v *Vec[T]) Insert(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	v.pruneLocked(now)
	if len(v.items) >= v.capacity {
		n := len(v.items) - v.capacity + 1
		clear(v.items[:n])
		v.items = append(v.items[:0], v.items[n:]...)
	}
	v.items = append(v.items, item[T]{at: now, v: val})
}

// Prune drops values older than TTL at now and returns how many were removed.
// Calling it again with the same time removes nothing.
func (v *Vec[T]) Prune(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pruneLocked(now)
}

func (v *Vec[T]) pruneLocked(now time.Time) int {
	// items are ordered by insertion time, so the expired ones form a prefix.
	n := 0
	for n < len(v.items) && expired(v.items[n].at, now, v.ttl) {
		n++
	}
	if n == 0 {
		return 0
	}
	clear(v.items[:n])
	v.items = append(v.items[:0], v.items[n:]...)
	return n
}

// Values returns the live values, oldest first.
func (v *Vec[T]) Values() []T {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	out := make([]T, 0, len(v.items))
	for _, it := range v.items {
		if !expired(it.at, now, v.ttl) {
			out = append(out, it.v)
		}
	}
	return out
}

// Len counts live values.
func (v *Vec[T]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	n := 0
	for _, it := range v.items {
		if !expired(it.at, now, v.ttl) {
			n++
		}
	}
	return n
}

// Oldest returns the oldest live value.
func (v *Vec[T]) Oldest() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	for _, it := range v.items {
		if !expired(it.at, now, v.ttl) {
			return it.v, true
		}
	}
	var zero T
	return zero, false
}

// Newest returns the most recently inserted live value.
func (v *Vec[T]) Newest() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	if len(v.items) == 0 {
		return zero, false
	}
	last := v.items[len(v.items)-1]
	if expired(last.at, v.now(), v.ttl) {
		return zero, false
	}
	return last.v, true
}
