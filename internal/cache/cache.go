// Package cache provides the storage tiers behind resolved metadata: byte
// caches (in-memory and Redis) and Cell, the two-tier memoized store every
// metadata factory resolves through.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for persistent cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values owned by this cache
	Clear(ctx context.Context) error

	// DeletePrefix removes the values whose key starts with prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is used when Set is called with a zero TTL. A negative
	// value stores entries without expiration.
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
	// CleanupInterval is how often the memory backend drops expired entries
	CleanupInterval time.Duration
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      time.Hour,
		Prefix:          "apimeta:",
		CleanupInterval: time.Minute,
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}
