package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/client"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/notify"
	"github.com/go-authgate/usergate/internal/token"
)

// initializeNotifier creates the notifier delivering verification and reset tokens
func initializeNotifier(cfg *config.Config) (core.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierWebhook:
		retryClient, err := client.CreateRetryClient(client.RetryOptions{
			AuthMode:      cfg.NotifierWebhookAuth,
			AuthSecret:    cfg.NotifierWebhookSecret,
			AuthHeader:    cfg.NotifierWebhookHeader,
			Timeout:       cfg.NotifierTimeout,
			MaxRetries:    cfg.NotifierMaxRetries,
			RetryDelay:    cfg.NotifierRetryDelay,
			MaxRetryDelay: cfg.NotifierMaxRetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook notifier client: %w", err)
		}
		log.Printf("[Notify] Webhook notifier enabled: %s", cfg.NotifierWebhookURL)
		return notify.NewWebhookNotifier(cfg.NotifierWebhookURL, retryClient), nil
	default:
		log.Printf("[Notify] Log notifier enabled (tokens are written to the process log)")
		return notify.NewLogNotifier(), nil
	}
}

// initializeAuthBackend creates the backend persisting identities between requests
func initializeAuthBackend(
	cfg *config.Config,
	tokens *token.Manager,
	denylist *token.Denylist,
) (core.AuthBackend, error) {
	switch cfg.AuthBackend {
	case config.AuthBackendSession:
		log.Printf("[Auth] Session backend enabled (cookie=%s)", cfg.SessionName)
		return auth.NewSessionBackend(cfg.SessionIdleTimeout), nil
	case config.AuthBackendJWT:
		log.Printf("[Auth] JWT backend enabled (expiration=%s)", cfg.JWTExpiration)
		return auth.NewJWTBackend(tokens, denylist, cfg.JWTExpiration), nil
	case config.AuthBackendJWTCookie:
		log.Printf(
			"[Auth] JWT cookie backend enabled (cookie=%s, expiration=%s)",
			cfg.JWTCookieName,
			cfg.JWTExpiration,
		)
		return auth.NewJWTCookieBackend(
			tokens,
			denylist,
			cfg.JWTExpiration,
			cfg.JWTCookieName,
			cfg.IsProduction,
		), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.AuthBackend)
	}
}
