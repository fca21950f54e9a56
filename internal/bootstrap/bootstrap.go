package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	MetricsCache         core.Cache[int64]
	MetricsCacheCloser   func() error
	UserCache            core.Cache[models.User]
	UserCacheCloser      func() error
	DenylistCache        core.Cache[bool]
	DenylistCacheCloser  func() error
	RateLimitRedisClient *redis.Client

	// Business layer
	Tokens         *token.Manager
	Denylist       *token.Denylist
	OAuthProviders map[string]auth.Provider
	Notifier       core.Notifier
	AuditService   *services.AuditService
	UserService    *services.UserService
	AuthBackend    core.AuthBackend

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(ctx); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, caches, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Caches
	app.UserCache, app.UserCacheCloser, err = initializeUserCache(ctx, app.Config)
	if err != nil {
		return err
	}
	app.DenylistCache, app.DenylistCacheCloser, err = initializeDenylistCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up providers, notifier and services
func (app *Application) initializeBusinessLayer(ctx context.Context) error {
	var err error

	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Config.EnableAuditLogging,
		app.Config.AuditLogBufferSize,
	)

	// OAuth providers
	app.OAuthProviders, err = initializeOAuthProviders(ctx, app.Config)
	if err != nil {
		return err
	}
	logOAuthProvidersStatus(app.OAuthProviders)

	// Notifier
	app.Notifier, err = initializeNotifier(app.Config)
	if err != nil {
		return err
	}

	app.Tokens = token.NewManager(app.Config.Secret, app.Config.BaseURL)
	app.UserService, err = initializeUserService(
		app.Config,
		app.DB,
		app.Tokens,
		app.Notifier,
		app.OAuthProviders,
		app.AuditService,
		app.MetricsRecorder,
		app.UserCache,
	)
	if err != nil {
		return err
	}

	// Auth backend
	if app.DenylistCache != nil {
		app.Denylist = token.NewDenylist(app.DenylistCache)
	}
	app.AuthBackend, err = initializeAuthBackend(app.Config, app.Tokens, app.Denylist)
	return err
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	// Handlers
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.UserService,
		app.AuthBackend,
		app.AuditService,
		app.MetricsRecorder,
	)

	// Router
	var err error
	app.Router, err = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.MetricsRecorder,
		app.AuditService,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}

	// HTTP Server
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.AuditService)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addCacheCleanupJob(m, "metrics", app.MetricsCacheCloser)
	addCacheCleanupJob(m, "user", app.UserCacheCloser)
	addCacheCleanupJob(m, "denylist", app.DenylistCacheCloser)
	addDatabaseShutdownJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}
