// Package memory is an in-process Provider bounded by entry count, backed by
// timedsized.Map. It needs no external service and suits single-replica use
// and tests.
package memory

import (
	"bytes"
	"context"
	"time"

	pr "github.com/unkn0wn-root/outcall/provider"
	"github.com/unkn0wn-root/outcall/timedsized"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = only the store TTL applies
}

type Memory struct {
	m   *timedsized.Map[string, entry]
	now func() time.Time
}

var _ pr.Provider = (*Memory)(nil)

type Config struct {
	MaxEntries int           // default 10_000
	TTL        time.Duration // upper bound for every entry; 0 = none
	// Now replaces time.Now.
	Now func() time.Time
}

func New(cfg Config) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{
		m:   timedsized.NewMap[string, entry](cfg.MaxEntries, cfg.TTL, timedsized.WithClock(cfg.Now)),
		now: cfg.Now,
	}
}

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.m.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.m.Delete(key)
		return nil, false, nil
	}
	return bytes.Clone(e.value), true, nil
}

// Set never rejects: a full store evicts its oldest entry.
func (p *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}
	p.m.Insert(key, e)
	return true, nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.m.Delete(key)
	return nil
}

func (p *Memory) Close(context.Context) error { return nil }

// Len counts live entries.
func (p *Memory) Len() int { return p.m.Len() }
