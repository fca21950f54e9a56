package bootstrap

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for the public endpoints
type rateLimitMiddlewares struct {
	login          gin.HandlerFunc
	register       gin.HandlerFunc
	verify         gin.HandlerFunc
	forgotPassword gin.HandlerFunc
	resetPassword  gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOpMiddleware := func(c *gin.Context) { c.Next() }
		return rateLimitMiddlewares{
			login:          noOpMiddleware,
			register:       noOpMiddleware,
			verify:         noOpMiddleware,
			forgotPassword: noOpMiddleware,
			resetPassword:  noOpMiddleware,
		}, nil
	}
	return createRateLimiters(cfg, auditService, redisClient)
}

// createRateLimiters creates one limiter per endpoint, each with its own key space
func createRateLimiters(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Printf("Using shared Redis client for rate limiting")
	} else {
		log.Printf("In-memory rate limiting configured (single instance only)")
	}

	var firstErr error
	createLimiter := func(requestsPerMinute int, route config.RouteConfig) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			Prefix:            "usergate:ratelimit:" + strings.Trim(route.Path, "/"),
			StoreType:         storeType,
			RedisClient:       redisClient,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			AuditService:      auditService,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for %s: %w", route.Path, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		login:          createLimiter(cfg.LoginRateLimit, cfg.LoginRoute),
		register:       createLimiter(cfg.RegisterRateLimit, cfg.RegisterRoute),
		verify:         createLimiter(cfg.VerifyRateLimit, cfg.VerifyRoute),
		forgotPassword: createLimiter(cfg.ForgotPasswordRateLimit, cfg.ForgotPasswordRoute),
		resetPassword:  createLimiter(cfg.ResetPasswordRateLimit, cfg.ResetPasswordRoute),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
