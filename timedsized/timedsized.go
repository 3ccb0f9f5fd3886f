// Package timedsized provides containers bounded both by entry count and by
// entry age. Inserting into a full container evicts the oldest entry. Reads
// never return an entry older than the time-to-live, whether or not Prune has
// run since it expired.
//
// All operations are safe for concurrent use.
package timedsized

import "time"

// Option configures a Vec or a Map.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock replaces time.Now. Tests use it to simulate the passage of time.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func checkCapacity(capacity int) {
	if capacity <= 0 {
		panic("timedsized: capacity must be positive")
	}
}

// expired reports whether an entry inserted at `at` is past ttl at `now`.
// A non-positive ttl disables age-based expiry.
func expired(at, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(at) >= ttl
}
