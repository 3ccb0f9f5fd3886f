package client

import (
	"github.com/unkn0wn-root/outcall/cache"
	"github.com/unkn0wn-root/outcall/observability"
)

// cacheHooks counts lookups per provider and forwards every event to next.
type cacheHooks struct {
	provider string
	metrics  *observability.Metrics
	next     cache.Hooks
}

func newCacheHooks(provider string, m *observability.Metrics, next cache.Hooks) cache.Hooks {
	if next == nil {
		next = cache.NopHooks{}
	}
	if m == nil {
		return next
	}
	return cacheHooks{provider: provider, metrics: m, next: next}
}

func (h cacheHooks) Lookup(method string, hit bool) {
	h.metrics.RecordCacheLookup(h.provider, method, hit)
	h.next.Lookup(method, hit)
}

func (h cacheHooks) SelfHeal(key, reason string)             { h.next.SelfHeal(key, reason) }
func (h cacheHooks) ProviderSetRejected(key string)          { h.next.ProviderSetRejected(key) }
func (h cacheHooks) ProviderError(op, key string, err error) { h.next.ProviderError(op, key, err) }
