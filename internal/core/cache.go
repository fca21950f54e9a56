package core

import (
	"context"
	"time"
)

// Cache is a typed key-value store with per-entry TTL. UserGate keeps three of
// them: user records (Cache[models.User], keys "user:<id>"), revoked access
// token ids (Cache[bool]) and shared gauge counts (Cache[int64]).
type Cache[T any] interface {
	// Get returns cache.ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// MGet omits absent keys from the result instead of failing.
	MGet(ctx context.Context, keys []string) (map[string]T, error)
	MSet(ctx context.Context, values map[string]T, ttl time.Duration) error

	// Delete is how writers invalidate a cached user after an update.
	Delete(ctx context.Context, key string) error

	// GetWithFetch loads through fetchFunc on a miss and stores the result.
	// The rueidis-aside backend collapses concurrent misses into one fetch.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)

	Health(ctx context.Context) error
	Close() error
}
