package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider signs users in with any OpenID Connect issuer, using discovery
// for endpoints and the issuer's keys for ID token verification
type OIDCProvider struct {
	oauth2Provider
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider discovers the issuer and creates a provider named name
func NewOIDCProvider(
	ctx context.Context,
	name, issuerURL string,
	cfg ProviderConfig,
) (*OIDCProvider, error) {
	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthDiscovery, err)
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &OIDCProvider{
		oauth2Provider: newOAuth2Provider(name, cfg, provider.Endpoint()),
		provider:       provider,
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

type oidcClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// IDEmail reads the subject and email from the verified ID token when the
// provider returned one, and from the userinfo endpoint otherwise
func (p *OIDCProvider) IDEmail(ctx context.Context, tok *oauth2.Token) (string, string, error) {
	ctx = p.withClient(ctx)

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrOAuthIDTokenFailed, err)
		}
		var claims oidcClaims
		if err := idToken.Claims(&claims); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrOAuthIDTokenFailed, err)
		}
		if claims.Email != "" {
			return idToken.Subject, claims.Email, nil
		}
	}

	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrOAuthProviderAPI, err)
	}
	if info.Email == "" {
		return info.Subject, "", ErrOAuthNoEmail
	}
	return info.Subject, info.Email, nil
}
