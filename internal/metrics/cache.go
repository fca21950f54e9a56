package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/usergate/internal/core"
)

// Cache keys for user counts
const (
	keyUsersTotal    = "users:total"
	keyUsersActive   = "users:active"
	keyUsersVerified = "users:verified"
)

// CacheWrapper provides a read-through cache for metrics data.
// It queries the database on cache miss and updates the cache for subsequent requests.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// getCountWithCache retrieves a count using the cache-aside pattern.
func (m *CacheWrapper) getCountWithCache(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context) (int64, error),
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		key,
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return fetchFunc(ctx)
		},
	)
}

// GetUsersCount retrieves the total number of users.
func (m *CacheWrapper) GetUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, keyUsersTotal, ttl, m.store.CountUsers)
}

// GetActiveUsersCount retrieves the number of active users.
func (m *CacheWrapper) GetActiveUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, keyUsersActive, ttl, m.store.CountActiveUsers)
}

// GetVerifiedUsersCount retrieves the number of verified users.
func (m *CacheWrapper) GetVerifiedUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, keyUsersVerified, ttl, m.store.CountVerifiedUsers)
}

// UpdateUserGauges refreshes the user gauges of the recorder. A failed count is
// recorded as a database query error and leaves the gauges untouched.
func (m *CacheWrapper) UpdateUserGauges(
	ctx context.Context,
	recorder core.Recorder,
	ttl time.Duration,
) error {
	total, err := m.GetUsersCount(ctx, ttl)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_users")
		return err
	}
	active, err := m.GetActiveUsersCount(ctx, ttl)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_active_users")
		return err
	}
	verified, err := m.GetVerifiedUsersCount(ctx, ttl)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_verified_users")
		return err
	}

	recorder.SetUserCounts(total, active, verified)
	return nil
}
