// Package store wraps the external time-series + key-value service the
// core depends on. It only exposes the operation set spec.md §4.D
// relies on: series create/add/range/delete and TTL'd key-value
// get/set/exists.
package store

import (
	"context"
	"time"
)

// Point is one (timestamp, value) sample of a price or signal series.
type Point struct {
	TimestampMS int64
	Value       float64
}

// DuplicatePolicy values accepted by CreateSeries/Add. The core only ever
// uses "last" (last-write-wins on a duplicate timestamp), but the type
// documents the contract explicitly rather than hard-coding a string
// at every call site.
type DuplicatePolicy string

// DuplicateLast resolves a duplicate-timestamp write in favour of
// whichever call landed last, per spec.md §4.D.
const DuplicateLast DuplicatePolicy = "last"

// Store is the thin typed wrapper the ingestion engine, signal
// evaluator, and notifier share. Implementations must be safe for
// concurrent use — the external service is shared infrastructure, not
// owned by any single task.
type Store interface {
	// CreateSeries is idempotent: creating a series that already
	// exists is a no-op, never an error.
	CreateSeries(ctx context.Context, key string, retention time.Duration, policy DuplicatePolicy) error

	// Add appends (or, per DuplicatePolicy, overwrites) one sample.
	Add(ctx context.Context, key string, timestampMS int64, value float64, policy DuplicatePolicy) error

	// Range returns samples in [startMS, endMS] ascending by timestamp.
	Range(ctx context.Context, key string, startMS, endMS int64) ([]Point, error)

	// Delete removes samples in [startMS, endMS].
	Delete(ctx context.Context, key string, startMS, endMS int64) error

	// Get returns the string value of a KV key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a KV pair with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// TTL returns the remaining TTL of a key, and whether the key
	// exists with a readable TTL at all (a key with no expiry, or an
	// already-expired/absent key, reports false).
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// Exists reports whether key is currently present.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the underlying connection.
	Close() error
}
