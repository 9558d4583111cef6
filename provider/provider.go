// Package provider defines the byte stores that back leaf cache levels.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed so that the bytes returned by
// Get are identical to the bytes provided to Set.
//
// Values written through cachechain carry a small frame (magic, expiry, length).
// Foreign writes under a level's namespace are treated as corruption and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost and TTL if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	// A nil error with ok=true means a following Get observes the value.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Clear removes every key this provider owns. Must be idempotent.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// MemoryReleaser is implemented by memory-backed providers that can give
// memory back when the process is under pressure.
type MemoryReleaser interface {
	ReleaseMemory()
}
