package bootstrap

import (
	"errors"
	"fmt"

	"github.com/go-authgate/usergate/internal/config"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateOAuthConfig(cfg); err != nil {
		return fmt.Errorf("invalid OAuth configuration: %w", err)
	}
	return nil
}

// validateOAuthConfig checks that an enabled OIDC provider has an issuer to discover
func validateOAuthConfig(cfg *config.Config) error {
	if cfg.OIDCOAuthEnabled && cfg.OIDCIssuerURL == "" {
		return errors.New("OIDC_ISSUER_URL is required when OIDC_OAUTH_ENABLED=true")
	}
	if cfg.OIDCOAuthEnabled && (cfg.OIDCProviderName == "github" || cfg.OIDCProviderName == "gitea") {
		return fmt.Errorf("OIDC_PROVIDER_NAME %q collides with a built-in provider", cfg.OIDCProviderName)
	}
	return nil
}
