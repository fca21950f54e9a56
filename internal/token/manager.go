package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token audiences. A token decoded with one audience never validates for another.
const (
	AudienceVerify        = "verify"
	AudienceResetPassword = "reset_password"
	AudienceOAuth2State   = "usergate:oauth2-state"
	AudienceAccess        = "access"
)

// Default lifetimes per audience
const (
	DefaultVerifyLifetime        = 24 * time.Hour
	DefaultResetPasswordLifetime = 24 * time.Hour
	DefaultStateLifetime         = time.Hour
)

// Claims are the JWT claims carried by every token
type Claims struct {
	jwt.RegisteredClaims
	Data map[string]string `json:"data,omitempty"`
}

// Result is a freshly signed token
type Result struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Manager signs and decodes HS256 tokens bound to an audience
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewManager creates a token manager. issuer may be empty.
func NewManager(secret, issuer string) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Generate signs a token for subject, valid for lifetime and bound to audience
func (m *Manager) Generate(
	subject, audience string,
	lifetime time.Duration,
	data map[string]string,
) (*Result, error) {
	now := m.now()
	expiresAt := now.Add(lifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			ID:        uuid.New().String(),
		},
		Data: data,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &Result{
		Token:     signed,
		ID:        claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies the signature, expiry and audience of tokenString
func (m *Manager) Decode(tokenString, audience string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpiredToken)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrWrongAudience)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrBadSignature)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
