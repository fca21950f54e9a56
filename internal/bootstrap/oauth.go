package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/client"
	"github.com/go-authgate/usergate/internal/config"

	"github.com/appleboy/go-httpclient"
)

// initializeOAuthProviders initializes configured OAuth providers
func initializeOAuthProviders(
	ctx context.Context,
	cfg *config.Config,
) (map[string]auth.Provider, error) {
	providers := make(map[string]auth.Provider)
	if !cfg.OAuthEnabled() {
		return providers, nil
	}

	httpClient, err := createOAuthHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	// GitHub OAuth
	switch {
	case !cfg.GitHubOAuthEnabled:
		// Skip GitHub OAuth
	case cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "":
		log.Printf("[OAuth] Warning: GitHub OAuth enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers["github"] = auth.NewGitHubProvider(auth.ProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  providerRedirectURL(cfg, "github", cfg.GitHubOAuthRedirectURL),
			Scopes:       cfg.GitHubOAuthScopes,
			HTTPClient:   httpClient,
		})
		log.Printf("[OAuth] GitHub configured")
	}

	// Gitea OAuth
	switch {
	case !cfg.GiteaOAuthEnabled:
		// Skip Gitea OAuth
	case cfg.GiteaURL == "" || cfg.GiteaClientID == "" || cfg.GiteaClientSecret == "":
		log.Printf("[OAuth] Warning: Gitea OAuth enabled but URL, CLIENT_ID or CLIENT_SECRET missing")
	default:
		providers["gitea"] = auth.NewGiteaProvider(auth.ProviderConfig{
			ClientID:     cfg.GiteaClientID,
			ClientSecret: cfg.GiteaClientSecret,
			RedirectURL:  providerRedirectURL(cfg, "gitea", cfg.GiteaOAuthRedirectURL),
			Scopes:       cfg.GiteaOAuthScopes,
			HTTPClient:   httpClient,
		}, cfg.GiteaURL)
		log.Printf("[OAuth] Gitea configured: server=%s", cfg.GiteaURL)
	}

	// Generic OpenID Connect
	switch {
	case !cfg.OIDCOAuthEnabled:
		// Skip OIDC
	case cfg.OIDCClientID == "" || cfg.OIDCClientSecret == "":
		log.Printf("[OAuth] Warning: OIDC enabled but CLIENT_ID or CLIENT_SECRET missing")
	default:
		ctx, cancel := context.WithTimeout(ctx, cfg.OAuthTimeout)
		defer cancel()

		name := cfg.OIDCProviderName
		provider, err := auth.NewOIDCProvider(ctx, name, cfg.OIDCIssuerURL, auth.ProviderConfig{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  providerRedirectURL(cfg, name, cfg.OIDCOAuthRedirectURL),
			Scopes:       cfg.OIDCOAuthScopes,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC provider %s: %w", name, err)
		}
		providers[name] = provider
		log.Printf("[OAuth] OIDC provider %s configured: issuer=%s", name, cfg.OIDCIssuerURL)
	}

	return providers, nil
}

// providerRedirectURL defaults a provider's redirect URL to its callback route
func providerRedirectURL(cfg *config.Config, provider, configured string) string {
	if configured != "" {
		return configured
	}
	return cfg.BaseURL + cfg.OAuth2Route.Path + "/" + provider + "/callback"
}

// getProviderNames returns a sorted list of provider names
func getProviderNames(providers map[string]auth.Provider) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// createOAuthHTTPClient creates an HTTP client for OAuth requests with optimized connection pool
func createOAuthHTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.OAuthInsecureSkipVerify {
		log.Printf("WARNING: OAuth TLS verification is disabled (OAUTH_INSECURE_SKIP_VERIFY=true)")
	}

	httpClient, err := httpclient.NewClient(
		httpclient.WithTimeout(cfg.OAuthTimeout),
		httpclient.WithTransport(client.NewTransport(cfg.OAuthInsecureSkipVerify)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth HTTP client: %w", err)
	}
	return httpClient, nil
}

// logOAuthProvidersStatus logs enabled OAuth providers
func logOAuthProvidersStatus(providers map[string]auth.Provider) {
	if len(providers) > 0 {
		log.Printf("[OAuth] Providers enabled: %v", getProviderNames(providers))
	}
}
