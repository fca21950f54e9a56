package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// usesRedisRateLimitStore reports whether the login, registration and password
// endpoints count attempts in Redis.
func usesRedisRateLimitStore(cfg *config.Config) bool {
	return cfg.EnableRateLimit && cfg.RateLimitStore == string(middleware.RateLimitStoreRedis)
}

// initializeRateLimitRedisClient opens the go-redis client shared by the ulule
// limiter store and the health check. It is nil unless the Redis store is selected.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !usesRedisRateLimitStore(cfg) {
		return nil, nil //nolint:nilnil // no limiter store to back
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rate limit store unreachable at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Rate limit counters stored in Redis %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	return client, nil
}
