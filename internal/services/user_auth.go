package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"
	"github.com/go-authgate/usergate/internal/util"

	"github.com/google/uuid"
)

// Authenticate checks credentials against the configured identifier.
// Unknown users still cost one hash verification, and the pre-login hook result
// is only applied after the password check.
func (s *UserService) Authenticate(ctx context.Context, creds Credentials) (*models.User, error) {
	start := time.Now()

	proceed, err := s.hooks.PreLogin(ctx, creds)
	if err != nil {
		return nil, err
	}

	kind := s.config.UserAuthIdentifier
	identifier := creds.Identifier(kind)

	user, err := s.store.GetUserByIdentifier(ctx, kind, identifier)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordDatabaseQueryError("get_user_by_identifier")
			return nil, err
		}
		s.passwords.DummyVerify(creds.Password)
		s.loginFailed(ctx, identifier, "", start)
		return nil, ErrInvalidCredentials
	}

	verified, newHash := s.passwords.VerifyAndUpdate(creds.Password, user.PasswordHash)
	if newHash != "" {
		if err := s.store.UpdateUserFields(ctx, user.ID, map[string]any{"password_hash": newHash}); err != nil {
			log.Printf("[Auth] Failed to upgrade password hash for user=%s: %v", user.ID, err)
		} else {
			user.PasswordHash = newHash
			s.InvalidateUserCache(ctx, user.ID)
		}
	}

	if !verified || !proceed {
		s.loginFailed(ctx, identifier, user.ID, start)
		return nil, ErrInvalidCredentials
	}

	if err := s.hooks.PostLogin(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(s.config.AuthBackend, true, time.Since(start))
	s.audit(ctx, AuditLogEntry{
		EventType:     models.EventAuthenticationSuccess,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.DisplayName(),
		ResourceType:  models.ResourceUser,
		ResourceID:    user.ID,
		ResourceName:  user.DisplayName(),
		Action:        "User logged in",
		Details: models.AuditDetails{
			"backend":       s.config.AuthBackend,
			"hash_upgraded": newHash != "",
		},
		Success: true,
	})

	return user, nil
}

func (s *UserService) loginFailed(ctx context.Context, identifier, userID string, start time.Time) {
	s.metrics.RecordLogin(s.config.AuthBackend, false, time.Since(start))
	s.audit(ctx, AuditLogEntry{
		EventType:     models.EventAuthenticationFailure,
		Severity:      models.SeverityWarning,
		ActorUserID:   userID,
		ActorUsername: identifier,
		ResourceType:  models.ResourceUser,
		ResourceID:    userID,
		Action:        "Login failed",
		Details:       models.AuditDetails{"backend": s.config.AuthBackend},
		Success:       false,
		ErrorMessage:  ErrInvalidCredentials.Error(),
	})
}

// GenerateToken signs a limited-time token for the user bound to audience
func (s *UserService) GenerateToken(userID, audience string) (string, error) {
	result, err := s.tokens.Generate(userID, audience, s.tokenLifetime(audience), nil)
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

func (s *UserService) tokenLifetime(audience string) time.Duration {
	switch audience {
	case token.AudienceVerify:
		if s.config.VerificationTTL > 0 {
			return s.config.VerificationTTL
		}
		return token.DefaultVerifyLifetime
	case token.AudienceResetPassword:
		if s.config.PasswordResetTTL > 0 {
			return s.config.PasswordResetTTL
		}
		return token.DefaultResetPasswordLifetime
	case token.AudienceOAuth2State:
		if s.config.OAuth2StateTTL > 0 {
			return s.config.OAuth2StateTTL
		}
		return token.DefaultStateLifetime
	}
	return token.DefaultVerifyLifetime
}

// InitiateVerification sends a verification token to the user
func (s *UserService) InitiateVerification(ctx context.Context, user *models.User) error {
	tok, err := s.GenerateToken(user.ID, token.AudienceVerify)
	if err != nil {
		return err
	}
	return s.notifier.SendVerificationToken(ctx, user, tok)
}

// Verify marks the token's subject as verified
func (s *UserService) Verify(ctx context.Context, encoded string) (*models.User, error) {
	user, claims, err := s.userFromToken(ctx, encoded, token.AudienceVerify)
	if err != nil {
		s.metrics.RecordVerification(false)
		return nil, err
	}

	if err := s.store.UpdateUserFields(ctx, user.ID, map[string]any{"is_verified": true}); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordVerification(false)
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	user.IsVerified = true
	s.InvalidateUserCache(ctx, user.ID)

	if err := s.hooks.PostVerification(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordVerification(true)
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventUserVerified,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "User verified",
		Details:      models.AuditDetails{"jti": claims.ID},
		Success:      true,
	})

	return user, nil
}

// InitiatePasswordReset sends a reset token when the email belongs to a user.
// An unknown email still signs a token and returns nil so callers cannot tell
// the two cases apart.
func (s *UserService) InitiatePasswordReset(ctx context.Context, email string) error {
	s.metrics.RecordPasswordResetRequested()

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		// Signed and dropped so unknown emails take as long as known ones.
		_, _ = s.GenerateToken(uuid.New().String(), token.AudienceResetPassword)
		return nil
	}

	tok, err := s.GenerateToken(user.ID, token.AudienceResetPassword)
	if err != nil {
		return err
	}
	if err := s.notifier.SendPasswordResetToken(ctx, user, tok); err != nil {
		log.Printf("[Auth] Failed to send password reset token to user=%s: %v", user.ID, err)
	}

	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventPasswordResetRequested,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "Password reset requested",
		Success:      true,
	})
	return nil
}

// ResetPassword sets a new password for the subject of a reset token
func (s *UserService) ResetPassword(ctx context.Context, encoded, newPassword string) error {
	user, _, err := s.userFromToken(ctx, encoded, token.AudienceResetPassword)
	if err != nil {
		s.metrics.RecordPasswordReset(false)
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		s.metrics.RecordPasswordReset(false)
		return err
	}

	if err := s.store.UpdateUserFields(ctx, user.ID, map[string]any{"password_hash": hash}); err != nil {
		s.metrics.RecordPasswordReset(false)
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	s.InvalidateUserCache(ctx, user.ID)

	s.metrics.RecordPasswordReset(true)
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventPasswordReset,
		Severity:     models.SeverityWarning,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "Password reset",
		Details:      models.AuditDetails{"token_fingerprint": util.SHA256Hex(encoded)},
		Success:      true,
	})
	return nil
}

// userFromToken decodes a token for audience and loads its subject
func (s *UserService) userFromToken(
	ctx context.Context,
	encoded, audience string,
) (*models.User, *token.Claims, error) {
	claims, err := s.tokens.Decode(encoded, audience)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return user, claims, nil
}
