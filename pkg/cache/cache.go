// Package cache stores collapse results keyed by the content of the input
// table and the options used.
//
// # Backends
//
//   - [FileCache]: JSON entry files under a directory, for CLI use
//   - [RedisCache]: a shared Redis instance, for the HTTP server
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: stores nothing, used with --no-cache
//
// # Keys
//
// A [Keyer] derives keys from a table content hash (see [Hash]) and the
// options that affect the result. [ScopedKeyer] prefixes keys to separate
// namespaces sharing one backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero on Set means the entry does not expire.
// Implementations are safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
