package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/usergate/internal/cache"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/metrics"
	"github.com/go-authgate/usergate/internal/models"
)

const (
	userCachePrefix     = "usergate:users:"
	metricsCachePrefix  = "usergate:metrics:"
	denylistCachePrefix = "usergate:denylist:"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// newCache builds a cache of the given type. Redis-backed caches are pinged
// within the cache init timeout.
func newCache[T any](
	ctx context.Context,
	cfg *config.Config,
	cacheType, prefix string,
	clientTTL time.Duration,
	sizePerConn int,
) (core.Cache[T], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cacheType {
	case config.CacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[T](
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
			clientTTL,
			sizePerConn,
		)
		if err != nil {
			return nil, err
		}
		if err := c.Health(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil

	case config.CacheTypeRedis:
		c, err := cache.NewRueidisCache[T](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			prefix,
		)
		if err != nil {
			return nil, err
		}
		return c, nil

	default: // memory
		return cache.NewMemoryCache[T](), nil
	}
}

// initializeMetricsCache initializes the metrics cache based on configuration
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil, nil
	}

	c, err := newCache[int64](
		ctx, cfg,
		cfg.MetricsCacheType,
		metricsCachePrefix,
		cfg.MetricsCacheClientTTL,
		cfg.MetricsCacheSizePerConn,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s metrics cache: %w", cfg.MetricsCacheType, err)
	}
	logCache("Metrics", cfg, cfg.MetricsCacheType, cfg.MetricsCacheClientTTL, cfg.MetricsCacheSizePerConn)
	return c, c.Close, nil
}

// initializeUserCache initializes the user cache (always enabled, defaults to memory)
func initializeUserCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[models.User], func() error, error) {
	c, err := newCache[models.User](
		ctx, cfg,
		cfg.UserCacheType,
		userCachePrefix,
		cfg.UserCacheClientTTL,
		cfg.UserCacheSizePerConn,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s user cache: %w", cfg.UserCacheType, err)
	}
	logCache("User", cfg, cfg.UserCacheType, cfg.UserCacheClientTTL, cfg.UserCacheSizePerConn)
	return c, c.Close, nil
}

// initializeDenylistCache initializes the revoked token store for the JWT backends
func initializeDenylistCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[bool], func() error, error) {
	if !cfg.UsesJWT() {
		return nil, nil, nil
	}

	c, err := newCache[bool](ctx, cfg, cfg.TokenDenylistType, denylistCachePrefix, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s token denylist: %w", cfg.TokenDenylistType, err)
	}
	logCache("Token denylist", cfg, cfg.TokenDenylistType, 0, 0)
	return c, c.Close, nil
}

func logCache(
	name string,
	cfg *config.Config,
	cacheType string,
	clientTTL time.Duration,
	sizePerConn int,
) {
	switch cacheType {
	case config.CacheTypeRedisAside:
		log.Printf(
			"%s cache: redis-aside (addr=%s, db=%d, client_ttl=%s, cache_size_per_conn=%dMB)",
			name,
			cfg.RedisAddr,
			cfg.RedisDB,
			clientTTL,
			sizePerConn,
		)
	case config.CacheTypeRedis:
		log.Printf("%s cache: redis (addr=%s, db=%d)", name, cfg.RedisAddr, cfg.RedisDB)
	default:
		log.Printf("%s cache: memory (single instance only)", name)
	}
}
