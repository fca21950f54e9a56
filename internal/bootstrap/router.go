package bootstrap

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/metrics"
	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/util"
	"github.com/go-authgate/usergate/internal/version"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	prometheusMetrics core.Recorder,
	auditService *services.AuditService,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	// Setup Gin mode
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())

	// Sessions carry the identity only for the session backend
	if cfg.AuthBackend == config.AuthBackendSession {
		setupSessionMiddleware(r, cfg)
	}

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db, rateLimitRedisClient))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Resolve the current user for every other request
	exclude, err := middleware.CompileExcludePaths(cfg.AuthExcludePaths)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_EXCLUDE_PATHS: %w", err)
	}
	r.Use(middleware.Authenticate(h.backend, h.userService, exclude))

	// Setup rate limiting
	rateLimiters, err := setupRateLimiting(cfg, auditService, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Setup all routes
	setupAllRoutes(r, cfg, h, rateLimiters)

	// Log server startup info
	logServerStartup(cfg)

	return r, nil
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cfg.SessionName, sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes registers every enabled route group under its configured path
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
) {
	if cfg.RegisterRoute.Enabled {
		r.POST(cfg.RegisterRoute.Path, rateLimiters.register, h.user.Register)
	}
	if cfg.VerifyRoute.Enabled {
		r.POST(cfg.VerifyRoute.Path, rateLimiters.verify, h.user.Verify)
	}
	if cfg.LoginRoute.Enabled {
		r.POST(cfg.LoginRoute.Path, rateLimiters.login, h.auth.Login)
	}
	if cfg.LogoutRoute.Enabled {
		r.POST(cfg.LogoutRoute.Path, middleware.RequireUser(), h.auth.Logout)
	}
	if cfg.ForgotPasswordRoute.Enabled {
		r.POST(cfg.ForgotPasswordRoute.Path, rateLimiters.forgotPassword, h.user.ForgotPassword)
	}
	if cfg.ResetPasswordRoute.Enabled {
		r.POST(cfg.ResetPasswordRoute.Path, rateLimiters.resetPassword, h.user.ResetPassword)
	}

	// Current user
	if cfg.CurrentUserRoute.Enabled {
		me := r.Group(cfg.CurrentUserRoute.Path, middleware.RequireUser())
		me.GET("", h.user.CurrentUser)
		me.PATCH("", h.user.UpdateCurrentUser)
	}

	// Role management (registered before user management so static segments win)
	if cfg.RoleManagementRoute.Enabled {
		roles := r.Group(cfg.RoleManagementRoute.Path, middleware.Guard(cfg.RoleManagementGuard))
		roles.GET("", h.role.ListRoles)
		roles.POST("", h.role.CreateRole)
		roles.PATCH("/:role_id", h.role.UpdateRole)
		roles.DELETE("/:role_id", h.role.DeleteRole)
		roles.PUT("/assign", h.role.AssignRole)
		roles.PUT("/revoke", h.role.RevokeRole)
	}

	// User management
	if cfg.UserManagementRoute.Enabled {
		users := r.Group(cfg.UserManagementRoute.Path, middleware.Guard(cfg.UserManagementGuard))
		users.GET("", h.user.ListUsers)
		users.GET("/:user_id", h.user.GetUser)
		users.PATCH("/:user_id", h.user.UpdateUser)
		users.DELETE("/:user_id", h.user.DeleteUser)
	}

	// OAuth2 sign-in and account association
	setupOAuthRoutes(r, cfg, h)

	// Audit logs
	if cfg.AuditRoute.Enabled && cfg.EnableAuditLogging {
		audit := r.Group(cfg.AuditRoute.Path, middleware.Guard(cfg.AuditGuard))
		audit.GET("", h.audit.ListAuditLogs)
		audit.GET("/stats", h.audit.GetAuditLogStats)
		audit.GET("/export", h.audit.ExportAuditLogs)
	}
}

// setupOAuthRoutes configures OAuth authentication routes
func setupOAuthRoutes(r *gin.Engine, cfg *config.Config, h handlerSet) {
	if !cfg.OAuthEnabled() {
		return
	}

	if cfg.OAuth2Route.Enabled {
		oauth := r.Group(cfg.OAuth2Route.Path)
		oauth.GET("/:provider/authorize", h.oauth.Authorize)
		oauth.GET("/:provider/callback", h.oauth.Callback)
	}

	if cfg.OAuth2AssociateRoute.Enabled {
		associate := r.Group(cfg.OAuth2AssociateRoute.Path, middleware.RequireUser())
		associate.GET("/:provider/authorize", h.oauth.AssociateAuthorize)
		associate.GET("/:provider/callback", h.oauth.AssociateCallback)
		associate.DELETE("/:provider", h.oauth.Unlink)
	}
}

// createHealthCheckHandler reports database and, when configured, Redis reachability
func createHealthCheckHandler(db *store.Store, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":   "healthy",
			"database": "connected",
			"version":  version.Short(),
		}

		if err := db.Health(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "disconnected"
		}

		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["redis"] = "disconnected"
			} else {
				body["redis"] = "connected"
			}
		}

		c.JSON(status, body)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Auth backend: %s (identifier: %s)", cfg.AuthBackend, cfg.UserAuthIdentifier)
	log.Printf("%s %s starting on %s", version.App, version.Short(), cfg.ServerAddr)
	log.Printf("Base URL: %s", cfg.BaseURL)
	if cfg.DefaultAdminPassword == "" {
		log.Printf("Default admin: %s (check logs for password if first run)", cfg.DefaultAdminEmail)
	}
}
