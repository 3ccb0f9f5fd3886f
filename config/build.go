package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/cache"
	"github.com/unkn0wn-root/outcall/client"
	"github.com/unkn0wn-root/outcall/codec"
	"github.com/unkn0wn-root/outcall/jsonrpc"
	"github.com/unkn0wn-root/outcall/observability"
	"github.com/unkn0wn-root/outcall/provider"
	"github.com/unkn0wn-root/outcall/provider/bigcache"
	"github.com/unkn0wn-root/outcall/provider/memory"
	"github.com/unkn0wn-root/outcall/provider/redis"
	"github.com/unkn0wn-root/outcall/provider/ristretto"
	"github.com/unkn0wn-root/outcall/ratelimit"
	"github.com/unkn0wn-root/outcall/retry"
	"github.com/unkn0wn-root/outcall/sloghooks"
	"github.com/unkn0wn-root/outcall/transport"
	"github.com/unkn0wn-root/outcall/transport/httptransport"
	"github.com/unkn0wn-root/outcall/transport/wstransport"
)

const (
	StoreMemory    = "memory"
	StoreRistretto = "ristretto"
	StoreBigcache  = "bigcache"
	StoreRedis     = "redis"
)

// Deps are the runtime collaborators a Config cannot describe.
type Deps struct {
	Logger     outcall.Logger
	Registerer prometheus.Registerer // used when metrics are enabled; nil = default
	HTTPClient *http.Client
	Sink       observability.Sink
}

// ClientOptions builds the options for client.New. It dials the cache store,
// so the caller owns it through client.Close.
func (c *Config) ClientOptions(ctx context.Context, d Deps) (client.Options, error) {
	opts := client.Options{
		Retry:              c.Retry.policy(),
		ResponseBytesLimit: c.ResponseBytesLimit,
		PerCallTimeout:     c.Multi.PerCallTimeout,
		Deadline:           c.Multi.Deadline,
		Logger:             d.Logger,
		Sink:               d.Sink,
	}
	if c.Metrics.Enabled {
		opts.Metrics = observability.NewMetrics(d.Registerer)
	}

	httpTr := httptransport.New(d.HTTPClient)
	wsTr := wstransport.New(d.HTTPClient)
	for _, p := range c.Providers {
		var tr transport.Transport = httpTr
		if p.Transport == TransportWS {
			tr = wsTr
		}
		opts.Providers = append(opts.Providers, client.Provider{
			Name: p.Name,
			Endpoint: jsonrpc.Endpoint{
				URL:              p.URL,
				Header:           p.header(),
				Timeout:          p.Timeout,
				MaxResponseBytes: p.MaxResponseBytes,
			},
			Transport: tr,
			RateLimit: ratelimit.Options{RPS: p.RateLimit.RPS, Burst: p.RateLimit.Burst},
		})
	}

	if c.Cache.Store == "" {
		return opts, nil
	}
	cd, err := codec.ByName[cache.Entry](c.Cache.Codec, int(2*jsonrpc.MaxResponseBytesCap))
	if err != nil {
		return client.Options{}, fmt.Errorf("config: cache.codec: %w", err)
	}
	store, err := c.Cache.NewStore(ctx)
	if err != nil {
		return client.Options{}, err
	}
	opts.Cache = &client.CacheOptions{
		Store:   store,
		Codec:   cd,
		TTL:     c.Cache.TTL,
		Methods: c.Cache.Methods,
		Prefix:  c.Cache.Prefix,
	}
	if c.Cache.LogEvents {
		opts.Cache.Hooks = sloghooks.New(c.Log.Slog(), sloghooks.Options{})
	}
	return opts, nil
}

func (r RetryConfig) policy() retry.Policy {
	p := retry.Policy{
		MaxAttempts:    r.MaxAttempts,
		MaxElapsed:     r.MaxElapsed,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		Multiplier:     r.Multiplier,
		Jitter:         retry.DefaultPolicy.Jitter,
	}
	if r.Jitter != nil {
		p.Jitter = *r.Jitter
	}
	return p
}

// NewStore opens the configured cache store.
func (cc CacheConfig) NewStore(ctx context.Context) (provider.Provider, error) {
	switch cc.Store {
	case StoreMemory:
		return memory.New(memory.Config{MaxEntries: cc.MaxEntries}), nil
	case StoreRistretto:
		maxCost := cc.MaxBytes
		if maxCost <= 0 {
			maxCost = 64 << 20
		}
		// ten counters per expected 1KiB entry
		p, err := ristretto.New(ristretto.Config{NumCounters: max(10*(maxCost>>10), 1000), MaxCost: maxCost, BufferItems: 64})
		if err != nil {
			return nil, fmt.Errorf("config: cache store: %w", err)
		}
		return p, nil
	case StoreBigcache:
		p, err := bigcache.New(bigcache.Config{
			MaxEntriesInWindow: cc.MaxEntries,
			HardMaxCacheSizeMB: int(cc.MaxBytes >> 20),
		})
		if err != nil {
			return nil, fmt.Errorf("config: cache store: %w", err)
		}
		return p, nil
	case StoreRedis:
		p, err := redis.Dial(ctx, cc.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("config: cache store: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("config: cache store %q", cc.Store)
	}
}
