// Package kvstore provides the TTL key-value store abstraction backing the
// confirmation gate's pending actions and the tenant resolver's caches.
// Components receive a Store instead of owning module-level maps so tests
// can substitute a fake and deployments can plug in a durable backend.
package kvstore

import (
	"context"
	"time"
)

// Store is a TTL-aware key-value store. Implementations must be safe for
// concurrent use and must provide an atomic Take so that two callers racing
// on the same key observe exactly one winner.
type Store interface {
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get returns the value for key, or false if absent or expired.
	Get(ctx context.Context, key string) (any, bool)

	// Take atomically removes and returns the value for key. Exactly one of
	// several concurrent callers succeeds; the rest observe false.
	Take(ctx context.Context, key string) (any, bool)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Sweep removes all expired entries and reports how many were dropped.
	Sweep(ctx context.Context) int
}
