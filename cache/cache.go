// Package cache serves repeated idempotent JSON-RPC calls from a byte store.
//
// Only successful responses of requests that declare themselves idempotent
// are stored. Entries are keyed by namespace, method and a hash of the params,
// encoded with a codec and framed by internal/wire. Anything that fails
// validation on read is deleted and treated as a miss. Store failures never
// fail a call: the request goes to the provider uncached.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/codec"
	"github.com/unkn0wn-root/outcall/internal/keys"
	"github.com/unkn0wn-root/outcall/internal/wire"
	"github.com/unkn0wn-root/outcall/jsonrpc"
	"github.com/unkn0wn-root/outcall/provider"
)

// Entry is the cached form of one successful call.
type Entry struct {
	Method string          `json:"m" cbor:"1,keyasint" msgpack:"m"`
	Params json.RawMessage `json:"p,omitempty" cbor:"2,keyasint,omitempty" msgpack:"p,omitempty"`
	Result json.RawMessage `json:"r" cbor:"3,keyasint" msgpack:"r"`
}

type Options struct {
	Namespace string            // required, e.g. "outcall:mainnet:alchemy"
	Provider  provider.Provider // required
	Codec     codec.Codec[Entry]
	// TTL bounds the age of a served entry, whatever the provider does; default 5s.
	TTL time.Duration
	// Methods restricts caching to these methods; empty = every idempotent call.
	Methods  []string
	Disabled bool
	Hooks    Hooks
	Logger   outcall.Logger
	// Now replaces time.Now.
	Now func() time.Time
}

type Cache struct {
	ns       string
	provider provider.Provider
	codec    codec.Codec[Entry]
	ttl      time.Duration
	methods  map[string]bool
	enabled  bool
	hooks    Hooks
	log      outcall.Logger
	now      func() time.Time
}

func New(opts Options) (*Cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("outcall: cache provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("outcall: cache namespace is required")
	}

	c := &Cache{
		ns:       opts.Namespace,
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}
	c.codec = coalesce[codec.Codec[Entry]](opts.Codec, codec.LimitCodec[Entry]{
		Inner:     codec.JSONCodec[Entry]{},
		MaxDecode: int(2 * jsonrpc.MaxResponseBytesCap),
	})
	c.ttl = coalesce(opts.TTL, 5*time.Second)
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.log = outcall.LoggerOrNop(opts.Logger)
	c.now = opts.Now
	if c.now == nil {
		c.now = time.Now
	}
	if len(opts.Methods) > 0 {
		c.methods = make(map[string]bool, len(opts.Methods))
		for _, m := range opts.Methods {
			c.methods[m] = true
		}
	}
	return c, nil
}

func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) Close(ctx context.Context) error { return c.provider.Close(ctx) }

// Cacheable reports whether req may be served from or stored in the cache.
func (c *Cache) Cacheable(req *jsonrpc.Request) bool {
	if !c.enabled || !req.IsIdempotent() {
		return false
	}
	return c.methods == nil || c.methods[req.Method()]
}

func (c *Cache) key(req *jsonrpc.Request) string {
	return keys.Call(c.ns, req.Method(), req.Params())
}

// Get returns the cached response for req, answered under req's id.
func (c *Cache) Get(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, bool) {
	if !c.Cacheable(req) {
		return nil, false
	}
	resp, ok := c.get(ctx, req)
	c.hooks.Lookup(req.Method(), ok)
	return resp, ok
}

func (c *Cache) get(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, bool) {
	k := c.key(req)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		c.hooks.ProviderError("get", k, err)
		c.log.Warn("cache get failed", outcall.Fields{"key": k, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	storedAt, payload, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, k, "corrupt")
		return nil, false
	}
	if c.now().Sub(storedAt) >= c.ttl {
		c.selfHeal(ctx, k, "expired")
		return nil, false
	}
	e, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, k, "value_decode")
		return nil, false
	}
	if e.Method != req.Method() || !sameJSON(e.Params, req.Params()) || len(e.Result) == 0 {
		c.selfHeal(ctx, k, "key_mismatch")
		return nil, false
	}
	return jsonrpc.NewRawResult(req.ID(), e.Result), true
}

// Set stores a successful response of a cacheable request. Error responses
// are never stored.
func (c *Cache) Set(ctx context.Context, req *jsonrpc.Request, resp *jsonrpc.Response) error {
	if !c.Cacheable(req) || resp == nil || resp.Error != nil || len(resp.Result) == 0 {
		return nil
	}
	payload, err := c.codec.Encode(Entry{Method: req.Method(), Params: compact(req.Params()), Result: resp.Result})
	if err != nil {
		return fmt.Errorf("outcall: encode cache entry: %w", err)
	}
	k := c.key(req)
	wireb := wire.Encode(c.now(), payload)
	ok, err := c.provider.Set(ctx, k, wireb, int64(len(wireb)), c.ttl)
	if err != nil {
		c.hooks.ProviderError("set", k, err)
		return fmt.Errorf("outcall: cache set: %w", err)
	}
	if !ok {
		c.hooks.ProviderSetRejected(k)
		c.log.Debug("cache set rejected by provider (pressure)", outcall.Fields{"key": k})
	}
	return nil
}

// Invalidate drops the cached response for req.
func (c *Cache) Invalidate(ctx context.Context, req *jsonrpc.Request) error {
	k := c.key(req)
	if err := c.provider.Del(ctx, k); err != nil {
		c.hooks.ProviderError("del", k, err)
		return fmt.Errorf("outcall: cache invalidate: %w", err)
	}
	return nil
}

func (c *Cache) selfHeal(ctx context.Context, k, reason string) {
	c.hooks.SelfHeal(k, reason)
	if err := c.provider.Del(ctx, k); err != nil {
		c.hooks.ProviderError("del", k, err)
	}
}

// Middleware answers cacheable requests from the cache and stores successful
// responses on the way back. Other requests pass straight through.
func (c *Cache) Middleware() outcall.Middleware[*jsonrpc.Request, *jsonrpc.Response] {
	return func(next outcall.Service[*jsonrpc.Request, *jsonrpc.Response]) outcall.Service[*jsonrpc.Request, *jsonrpc.Response] {
		return outcall.ServiceFunc[*jsonrpc.Request, *jsonrpc.Response](func(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
			if !c.Cacheable(req) {
				return next.Call(ctx, req)
			}
			if resp, ok := c.Get(ctx, req); ok {
				return resp, nil
			}
			resp, err := next.Call(ctx, req)
			if err != nil {
				return nil, err
			}
			if serr := c.Set(ctx, req, resp); serr != nil {
				c.log.Warn("cache store failed", outcall.Fields{"id": req.RequestID(), "method": req.Method(), "err": serr})
			}
			return resp, nil
		})
	}
}

func compact(b json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return b
	}
	return buf.Bytes()
}

func sameJSON(a, b json.RawMessage) bool {
	return bytes.Equal(compact(a), compact(b))
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
