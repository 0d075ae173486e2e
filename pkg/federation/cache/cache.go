// Package cache provides the optional Redis read cache.
//
// Keys map to small string field maps stored as Redis hashes. The cache
// is a performance accelerant, never a source of truth: every operation
// can fail without affecting correctness, and unless the configuration
// says otherwise failures degrade to a miss.
package cache

import (
	"context"
	"time"
)

// Cache is the key/value front consumed by the federation services.
type Cache interface {
	// Exists reports whether the key is cached.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the field map for the key. found is false on a miss.
	Get(ctx context.Context, key string) (fields map[string]string, found bool, err error)

	// Set stores the field map under key with the given TTL.
	Set(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error

	// UpdateField overwrites a single field of an existing entry. Writing
	// to a missing key is a no-op.
	UpdateField(ctx context.Context, key, field, value string) error

	// Invalidate removes the keys.
	Invalidate(ctx context.Context, keys ...string) error

	// CountKeys counts keys matching the prefix.
	CountKeys(ctx context.Context, prefix string) (int64, error)

	// LimitExceeded reports whether the number of keys under prefix has
	// reached limit. A limit of zero or less never trips.
	LimitExceeded(ctx context.Context, prefix string, limit int) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Noop is the Cache used when caching is disabled: every read misses and
// every write is discarded.
type Noop struct{}

func (Noop) Exists(context.Context, string) (bool, error) { return false, nil }
func (Noop) Get(context.Context, string) (map[string]string, bool, error) {
	return nil, false, nil
}
func (Noop) Set(context.Context, string, map[string]string, time.Duration) error { return nil }
func (Noop) UpdateField(context.Context, string, string, string) error           { return nil }
func (Noop) Invalidate(context.Context, ...string) error                         { return nil }
func (Noop) CountKeys(context.Context, string) (int64, error)                    { return 0, nil }
func (Noop) LimitExceeded(context.Context, string, int) (bool, error)            { return false, nil }
func (Noop) Ping(context.Context) error                                          { return nil }
func (Noop) Close() error                                                        { return nil }
