package cache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Lookup reports every read of a cacheable request.
	Lookup(method string, hit bool)

	// A single entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "value_decode", "key_mismatch", "expired"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Provider failed on op ∈ {"get", "set", "del"}. The call itself proceeds
	// uncached.
	ProviderError(op, storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(string, bool)                 {}
func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) ProviderError(string, string, error) {}
