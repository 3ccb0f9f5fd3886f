// Package bigcache is an in-process Provider for many entries with little GC
// overhead. bigcache expires entries after one global LifeWindow; the
// response cache enforces its own per-entry TTL on top.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/outcall/provider"
)

type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration // default 10m; keep it >= the cache TTL
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int // bytes, initial sizing hint
	HardMaxCacheSizeMB int // 0 = unbounded
}

func New(cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = 10 * time.Minute
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	conf.HardMaxCacheSize = max(cfg.HardMaxCacheSizeMB, 0)

	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, bc.ErrEntryNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Set ignores ttl; see the package doc.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(context.Context) error { return p.c.Close() }

// Len counts stored entries, expired ones included until the next clean.
func (p *Provider) Len() int { return p.c.Len() }
