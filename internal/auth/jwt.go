package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/gin-gonic/gin"
)

// ContextKeyClaims holds the decoded access token claims for the request
const ContextKeyClaims = "token_claims"

var _ core.AuthBackend = (*JWTBackend)(nil)

// JWTBackend issues access tokens in the Authorization header and, when a cookie
// name is configured, in an HttpOnly cookie as well.
type JWTBackend struct {
	tokens       *token.Manager
	denylist     *token.Denylist
	expiration   time.Duration
	cookieName   string
	secureCookie bool
}

// NewJWTBackend creates a header-only JWT backend
func NewJWTBackend(
	tokens *token.Manager,
	denylist *token.Denylist,
	expiration time.Duration,
) *JWTBackend {
	return &JWTBackend{tokens: tokens, denylist: denylist, expiration: expiration}
}

// NewJWTCookieBackend creates a JWT backend that also sets and reads a cookie
func NewJWTCookieBackend(
	tokens *token.Manager,
	denylist *token.Denylist,
	expiration time.Duration,
	cookieName string,
	secureCookie bool,
) *JWTBackend {
	return &JWTBackend{
		tokens:       tokens,
		denylist:     denylist,
		expiration:   expiration,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

func (b *JWTBackend) Name() string {
	if b.cookieName != "" {
		return config.AuthBackendJWTCookie
	}
	return config.AuthBackendJWT
}

// Login issues an access token for user
func (b *JWTBackend) Login(c *gin.Context, user *models.User) error {
	result, err := b.tokens.Generate(user.ID, token.AudienceAccess, b.expiration, nil)
	if err != nil {
		return err
	}

	c.Header("Authorization", "Bearer "+result.Token)
	if b.cookieName != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(b.cookieName, result.Token, int(b.expiration.Seconds()), "/", "", b.secureCookie, true)
	}
	return nil
}

// Identify decodes the request's access token and rejects revoked ones
func (b *JWTBackend) Identify(c *gin.Context) (string, error) {
	claims, err := b.claims(c)
	if err != nil {
		return "", err
	}
	c.Set(ContextKeyClaims, claims)
	return claims.Subject, nil
}

// Logout denylists the request's access token and clears the cookie
func (b *JWTBackend) Logout(c *gin.Context) error {
	if b.cookieName != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(b.cookieName, "", -1, "/", "", b.secureCookie, true)
	}

	claims, err := b.claims(c)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil
		}
		return err
	}
	if b.denylist == nil {
		return nil
	}
	return b.denylist.Revoke(c.Request.Context(), claims)
}

func (b *JWTBackend) claims(c *gin.Context) (*token.Claims, error) {
	raw := b.rawToken(c)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := b.tokens.Decode(raw, token.AudienceAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if b.denylist != nil {
		revoked, err := b.denylist.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, token.ErrRevokedToken)
		}
	}
	return claims, nil
}

// rawToken reads the bearer token, falling back to the cookie when enabled
func (b *JWTBackend) rawToken(c *gin.Context) string {
	if raw, ok := BearerToken(c.GetHeader("Authorization")); ok {
		return raw
	}
	if b.cookieName != "" {
		if raw, err := c.Cookie(b.cookieName); err == nil {
			return raw
		}
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value
func BearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// ClaimsFromContext returns the access token claims set by Identify, if any
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}
