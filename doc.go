// Package outcall shapes how outbound JSON-RPC calls are issued, retried,
// validated and cross-checked across several independent providers.
//
// Every concern is a layer around one capability, Service.Call. Layers own the
// service they wrap and treat it as opaque, so any stack of them is again a
// Service:
//
//	caller
//	  -> observability   (records id, timing, outcome, sizes)
//	  -> cache           (idempotent results, TTL bound)
//	  -> retry           (idempotent + retryable only)
//	  -> budget doubling (oversized responses of idempotent calls)
//	  -> ratelimit
//	  -> jsonrpc         (encode, decode, validate id)
//	  -> transport       (single attempt, external)
//
// Components:
//   - Service / Middleware / Chain: composition, see this package.
//   - jsonrpc: converter with constant-size ids.
//   - retry: bounded exponential backoff with jitter.
//   - observability: transparent instrumentation with pluggable sinks.
//   - multi: parallel fan-out to N providers and consensus reducers.
//   - timedsized: bounded, time-limited collections.
//   - client, config: per-provider pipelines assembled from YAML.
//
// Errors:
//
//	EncodingError           request not representable, never retried
//	DecodingError           malformed response, retryable if idempotent
//	IdentifierMismatchError stale or misrouted response, retryable if idempotent
//	ApplicationError        the server rejected the call, never retried
//	TransportError          timeout / network / size / status
package outcall
