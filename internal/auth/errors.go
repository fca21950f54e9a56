package auth

import "errors"

var (
	// ErrUnauthenticated indicates the request carries no valid identity
	ErrUnauthenticated = errors.New("authentication required")

	// ErrSessionExpired indicates the session was idle longer than allowed
	ErrSessionExpired = errors.New("session expired")

	// OAuth provider errors
	ErrOAuthNoEmail       = errors.New("OAuth account without email")
	ErrOAuthProviderAPI   = errors.New("OAuth provider API error")
	ErrOAuthExchange      = errors.New("failed to exchange authorization code")
	ErrOAuthDiscovery     = errors.New("failed to discover OIDC provider")
	ErrOAuthIDTokenFailed = errors.New("failed to verify ID token")
)
