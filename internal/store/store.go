// Package store provides the key-value storage abstractions shared by the
// cache, quota, and vault layers.
//
// The store package treats persistence as an opaque map with TTL semantics.
// Two implementations ship with the service: an in-process memory store used
// as the fast cache tier and the counter backend, and a file-backed store
// used as the durable cache tier.
package store

import (
	"context"
	"time"
)

// KeyValueStore is the minimal get/set/delete contract with per-entry TTL.
// A zero TTL means the entry does not expire.
type KeyValueStore interface {
	// Get returns the value for key. The second return value reports whether
	// the key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. If the key already exists it is replaced
	// wholesale and its TTL restarted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// CounterStore extends a store with an atomic bounded counter. The
// check-then-increment must be a single operation against the backend so two
// concurrent callers cannot both observe count below the ceiling and both
// pass it.
type CounterStore interface {
	// IncrementWithCeiling atomically increments the counter at key if the
	// current count is below ceiling. It returns the resulting count and
	// whether the increment was applied. The TTL is set when the counter is
	// first created and never extended, so the window rolls from the first
	// increment.
	IncrementWithCeiling(ctx context.Context, key string, ceiling int, ttl time.Duration) (count int, ok bool, err error)

	// Count returns the current counter value, zero if absent or expired.
	Count(ctx context.Context, key string) (int, error)
}
