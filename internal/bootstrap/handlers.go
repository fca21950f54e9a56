package bootstrap

import (
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/handlers"
	"github.com/go-authgate/usergate/internal/services"
)

// handlerSet holds all HTTP handlers and required services
type handlerSet struct {
	auth        *handlers.AuthHandler
	user        *handlers.UserHandler
	role        *handlers.RoleHandler
	oauth       *handlers.OAuthHandler
	audit       *handlers.AuditHandler
	backend     core.AuthBackend
	userService *services.UserService
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	userService *services.UserService,
	backend core.AuthBackend,
	auditService *services.AuditService,
	prometheusMetrics core.Recorder,
) handlerSet {
	return handlerSet{
		auth: handlers.NewAuthHandler(userService, backend, auditService, prometheusMetrics),
		user: handlers.NewUserHandler(userService),
		role: handlers.NewRoleHandler(userService),
		oauth: handlers.NewOAuthHandler(
			userService,
			backend,
			auditService,
			cfg.BaseURL,
			cfg.OAuth2AssociateRoute.Path,
		),
		audit:       handlers.NewAuditHandler(auditService),
		backend:     backend,
		userService: userService,
	}
}
