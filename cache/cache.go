// Package cache defines the plan cache abstraction and the tiered
// store that combines an in-process L1 with an optional distributed
// L2.
//
// Values cross the Store boundary as opaque bytes; the planner owns
// (de)serialization so both tiers share one interface. Cache failures
// are never surfaced to callers as request errors: a broken tier
// degrades to misses and no-op writes, observable only through
// metrics and logs.
package cache

import (
	"context"
	"time"
)

// Store is the common contract of every cache tier.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or found=false on a miss.
	// Tier-internal failures are reported as misses.
	Get(ctx context.Context, key string) (value []byte, found bool)

	// Put stores value under key with the given time-to-live.
	// A non-positive ttl means the tier's default.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
