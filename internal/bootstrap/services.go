package bootstrap

import (
	"fmt"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/password"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"
)

// initializeUserService creates the user service and its password manager
func initializeUserService(
	cfg *config.Config,
	db *store.Store,
	tokens *token.Manager,
	notifier core.Notifier,
	providers map[string]auth.Provider,
	auditService *services.AuditService,
	prometheusMetrics core.Recorder,
	userCache core.Cache[models.User],
) (*services.UserService, error) {
	passwords, err := password.NewManager(cfg.HashSchemes, cfg.PasswordMinLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password manager: %w", err)
	}

	return services.NewUserService(
		db,
		cfg,
		passwords,
		tokens,
		notifier,
		services.NoopHooks{},
		providers,
		auditService,
		prometheusMetrics,
		userCache,
	), nil
}
