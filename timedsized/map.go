package timedsized

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key K
	at  time.Time
	v   V
}

// Map is a keyed store holding at most Capacity entries, none older than TTL.
// Writing an existing key replaces its value and makes it the newest entry.
type Map[K comparable, V any] struct {
	mu       sync.Mutex
	order    *list.List // of *entry[K, V], oldest at the front
	index    map[K]*list.Element
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewMap panics if capacity is not positive.
func NewMap[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *Map[K, V] {
	checkCapacity(capacity)
	s := newSettings(opts)
	return &Map[K, V]{
		order:    list.New(),
		index:    make(map[K]*list.Element, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      s.now,
	}
}

// Insert stores v under k, evicting the oldest entry when full.
func (m *Map[K, V]) Insert(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if el, ok := m.index[k]; ok {
		m.removeLocked(el)
	}
	m.pruneLocked(now)
	for m.order.Len() >= m.capacity {
		m.removeLocked(m.order.Front())
	}
	m.index[k] = m.order.PushBack(&entry[K, V]{key: k, at: now, v: v})
}

// Get returns the value stored under k unless it is missing or expired.
// An expired entry found on read is removed.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	el, ok := m.index[k]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if expired(e.at, m.now(), m.ttl) {
		m.removeLocked(el)
		return zero, false
	}
	return e.v, true
}

// Delete removes k and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.index[k]
	if ok {
		m.removeLocked(el)
	}
	return ok
}

// Keys returns the live keys, oldest first.
func (m *Map[K, V]) Keys() []K {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]K, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K, V])
		if !expired(e.at, now, m.ttl) {
			out = append(out, e.key)
		}
	}
	return out
}

// Len counts live entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for el := m.order.Front(); el != nil; el = el.Next() {
		if !expired(el.Value.(*entry[K, V]).at, now, m.ttl) {
			n++
		}
	}
	return n
}

// Prune drops entries older than TTL at now and returns how many were removed.
func (m *Map[K, V]) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(now)
}

func (m *Map[K, V]) pruneLocked(now time.Time) int {
	n := 0
	for el := m.order.Front(); el != nil; el = m.order.Front() {
		if !expired(el.Value.(*entry[K, V]).at, now, m.ttl) {
			break
		}
		m.removeLocked(el)
		n++
	}
	return n
}

func (m *Map[K, V]) removeLocked(el *list.Element) {
	e := m.order.Remove(el).(*entry[K, V])
	delete(m.index, e.key)
}
