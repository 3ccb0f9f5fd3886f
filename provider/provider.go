// Package provider defines the byte store behind the response cache.
//
// A store keeps opaque values: Get returns exactly the bytes given to Set,
// without added metadata or re-encoding. The cache owns every key under its
// namespace and deletes values there that it cannot validate.
package provider

import (
	"context"
	"time"
)

// Provider is a byte store with per-key expiry, safe for concurrent use.
type Provider interface {
	// Get reports a miss as (nil, false, nil). Store failures return err.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for at most ttl; ttl <= 0 means no expiry. cost is the
	// value's weight for stores with cost-based admission. ok=false means the
	// store declined the write.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. A missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
