// Package client assembles one outcall pipeline per JSON-RPC provider and runs
// single-provider and multi-provider calls over them.
//
// Every provider pipeline is, outermost first:
//
//	observability -> cache -> retry -> response budget doubling -> rate limit -> jsonrpc -> transport
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/outcall"
	"github.com/unkn0wn-root/outcall/cache"
	"github.com/unkn0wn-root/outcall/codec"
	"github.com/unkn0wn-root/outcall/jsonrpc"
	"github.com/unkn0wn-root/outcall/multi"
	"github.com/unkn0wn-root/outcall/observability"
	"github.com/unkn0wn-root/outcall/provider"
	"github.com/unkn0wn-root/outcall/ratelimit"
	"github.com/unkn0wn-root/outcall/retry"
	"github.com/unkn0wn-root/outcall/transport"
	"github.com/unkn0wn-root/outcall/transport/httptransport"
)

var ErrUnknownProvider = errors.New("outcall: unknown provider")

type Service = outcall.Service[*jsonrpc.Request, *jsonrpc.Response]

// Provider is one upstream JSON-RPC endpoint.
type Provider struct {
	Name      string
	Endpoint  jsonrpc.Endpoint
	Transport transport.Transport // default: HTTP with http.DefaultClient
	RateLimit ratelimit.Options
}

// CacheOptions enables the response cache. All providers share Store; each
// gets its own namespace "<Prefix>:<provider>" so that answers of different
// providers never mix.
type CacheOptions struct {
	Store   provider.Provider // required
	Codec   codec.Codec[cache.Entry]
	TTL     time.Duration
	Methods []string
	Prefix  string // default "outcall"
	Hooks   cache.Hooks
}

type Options struct {
	Providers []Provider
	Retry     retry.Policy
	// ResponseBytesLimit caps budget doubling; default jsonrpc.MaxResponseBytesCap.
	ResponseBytesLimit int64
	Cache              *CacheOptions

	// Multi-provider calls.
	PerCallTimeout time.Duration
	Deadline       time.Duration

	Logger  outcall.Logger
	Metrics *observability.Metrics
	Sink    observability.Sink
	IDs     *jsonrpc.IDGenerator // default jsonrpc.DefaultIDs()
}

type pipeline struct {
	svc   Service
	cache *cache.Cache
}

type Client struct {
	names []string
	pipes map[string]pipeline
	opts  Options
	ids   *jsonrpc.IDGenerator
	log   outcall.Logger
}

func New(opts Options) (*Client, error) {
	if len(opts.Providers) == 0 {
		return nil, errors.New("outcall: at least one provider is required")
	}
	if opts.Cache != nil && opts.Cache.Store == nil {
		return nil, errors.New("outcall: cache store is required")
	}
	c := &Client{
		pipes: make(map[string]pipeline, len(opts.Providers)),
		opts:  opts,
		ids:   opts.IDs,
		log:   outcall.LoggerOrNop(opts.Logger),
	}
	if c.ids == nil {
		c.ids = jsonrpc.DefaultIDs()
	}
	if c.opts.ResponseBytesLimit <= 0 {
		c.opts.ResponseBytesLimit = jsonrpc.MaxResponseBytesCap
	}

	for _, p := range opts.Providers {
		if p.Name == "" {
			return nil, errors.New("outcall: provider name is required")
		}
		if _, dup := c.pipes[p.Name]; dup {
			return nil, fmt.Errorf("outcall: provider %q: %w", p.Name, multi.ErrDuplicateKey)
		}
		pl, err := c.build(p)
		if err != nil {
			return nil, fmt.Errorf("outcall: provider %q: %w", p.Name, err)
		}
		c.names = append(c.names, p.Name)
		c.pipes[p.Name] = pl
	}
	return c, nil
}

func (c *Client) build(p Provider) (pipeline, error) {
	tr := p.Transport
	if tr == nil {
		tr = httptransport.New(nil)
	}
	base := jsonrpc.NewService(p.Endpoint, tr, jsonrpc.WithIDGenerator(c.ids), jsonrpc.WithLogger(c.log))

	var pl pipeline
	var cacheMW outcall.Middleware[*jsonrpc.Request, *jsonrpc.Response]
	if co := c.opts.Cache; co != nil {
		prefix := co.Prefix
		if prefix == "" {
			prefix = "outcall"
		}
		cc, err := cache.New(cache.Options{
			Namespace: prefix + ":" + p.Name,
			Provider:  co.Store,
			Codec:     co.Codec,
			TTL:       co.TTL,
			Methods:   co.Methods,
			Hooks:     newCacheHooks(p.Name, c.opts.Metrics, co.Hooks),
			Logger:    c.log,
		})
		if err != nil {
			return pipeline{}, err
		}
		pl.cache = cc
		cacheMW = cc.Middleware()
	}

	retryOpts := retry.Options{Policy: c.opts.Retry, Logger: c.log}
	if m := c.opts.Metrics; m != nil {
		retryOpts.OnRetry = func(_ any, _ int, err error, _ time.Duration) {
			m.RecordRetry(p.Name, outcall.Label(err))
		}
	}

	rl := p.RateLimit
	if rl.Logger == nil {
		rl.Logger = c.log
	}

	pl.svc = outcall.Chain[*jsonrpc.Request, *jsonrpc.Response](base,
		observability.New[*jsonrpc.Request, *jsonrpc.Response](c.sink(), jsonrpc.Describe{}, observability.Options[*jsonrpc.Request, *jsonrpc.Response]{
			Provider: p.Name,
		}),
		cacheMW,
		retry.New[*jsonrpc.Request, *jsonrpc.Response](retryOpts),
		retry.DoubleMaxResponseBytes[*jsonrpc.Request, *jsonrpc.Response](c.opts.ResponseBytesLimit, c.log),
		ratelimit.Middleware[*jsonrpc.Request, *jsonrpc.Response](ratelimit.New(rl)),
	)
	return pl, nil
}

func (c *Client) sink() observability.Sink {
	var sinks observability.Fanout
	if c.opts.Metrics != nil {
		sinks = append(sinks, c.opts.Metrics)
	}
	if c.opts.Sink != nil {
		sinks = append(sinks, c.opts.Sink)
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// Providers returns the provider names in configuration order.
func (c *Client) Providers() []string {
	return append([]string(nil), c.names...)
}

// Service returns the pipeline of one provider.
func (c *Client) Service(name string) (Service, bool) {
	pl, ok := c.pipes[name]
	return pl.svc, ok
}

// Call sends req to a single provider.
func (c *Client) Call(ctx context.Context, name string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	pl, ok := c.pipes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return pl.svc.Call(ctx, req)
}

// MultiCall sends req to every provider at once. All providers see the same
// request id.
func (c *Client) MultiCall(ctx context.Context, req *jsonrpc.Request) (*multi.Results[string, *jsonrpc.Response], error) {
	if req.ID().IsZero() {
		req = req.WithID(c.ids.Next())
	}
	targets := make([]multi.Target[string, *jsonrpc.Request, *jsonrpc.Response], 0, len(c.names))
	for _, name := range c.names {
		targets = append(targets, multi.Target[string, *jsonrpc.Request, *jsonrpc.Response]{
			Key:     name,
			Service: c.pipes[name].svc,
			Req:     req,
		})
	}
	return multi.Call(ctx, targets, multi.Options{
		PerCallTimeout: c.opts.PerCallTimeout,
		Deadline:       c.opts.Deadline,
		Logger:         c.log,
	})
}

// Consensus runs MultiCall and reduces the outcomes: with threshold <= 0 every
// provider must agree, otherwise at least threshold providers must return the
// same result. The Results are returned whenever the multi-call itself ran.
func (c *Client) Consensus(ctx context.Context, req *jsonrpc.Request, threshold int) (*jsonrpc.Response, *multi.Results[string, *jsonrpc.Response], error) {
	res, err := c.MultiCall(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	var red multi.Reducer[string, *jsonrpc.Response]
	if threshold <= 0 {
		red = multi.ReduceWithEquality[string, *jsonrpc.Response](jsonrpc.ResultKey)
	} else {
		red = multi.ReduceWithThreshold[string, *jsonrpc.Response](threshold, jsonrpc.ResultKey)
	}
	resp, err := res.Reduce(red)
	if m := c.opts.Metrics; m != nil {
		m.RecordMultiCall(req.Method(), reductionLabel(err))
	}
	if err != nil {
		c.log.Debug("outcall.no_consensus", outcall.Fields{"multi_id": res.ID, "method": req.Method(), "err": err})
	}
	return resp, res, err
}

func reductionLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var redErr *multi.ReductionError[string, *jsonrpc.Response]
	if errors.As(err, &redErr) {
		return redErr.Kind.String()
	}
	if errors.Is(err, multi.ErrEmptyResults) {
		return "empty"
	}
	return "unknown"
}

// Invalidate drops the cached response of req at every provider.
func (c *Client) Invalidate(ctx context.Context, req *jsonrpc.Request) error {
	var errs []error
	for _, name := range c.names {
		if cc := c.pipes[name].cache; cc != nil {
			errs = append(errs, cc.Invalidate(ctx, req))
		}
	}
	return errors.Join(errs...)
}

// Close releases the cache store.
func (c *Client) Close(ctx context.Context) error {
	if c.opts.Cache == nil {
		return nil
	}
	return c.opts.Cache.Store.Close(ctx)
}
