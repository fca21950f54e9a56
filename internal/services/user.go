package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/cache"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/password"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/google/uuid"
)

const userCacheKeyPrefix = "user:"

// RegistrationInput is the data accepted when a user signs up
type RegistrationInput struct {
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
	Password string  `json:"password"`
}

// Credentials are the login data. Only the configured identifier is read.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Identifier returns the identifier value of the given kind
func (c Credentials) Identifier(kind string) string {
	if kind == config.IdentifierUsername {
		return c.Username
	}
	return c.Email
}

// UserUpdate holds the user attributes to change. Nil fields are left untouched.
type UserUpdate struct {
	Email      *string `json:"email,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
	IsVerified *bool   `json:"is_verified,omitempty"`
}

// UserService manages users, their credentials, roles and OAuth2 accounts
type UserService struct {
	store        *store.Store
	config       *config.Config
	passwords    *password.Manager
	tokens       *token.Manager
	notifier     core.Notifier
	hooks        Hooks
	providers    map[string]auth.Provider
	auditService *AuditService
	metrics      core.Recorder
	userCache    core.Cache[models.User]
	userCacheTTL time.Duration
}

func NewUserService(
	s *store.Store,
	cfg *config.Config,
	passwords *password.Manager,
	tokens *token.Manager,
	notifier core.Notifier,
	hooks Hooks,
	providers map[string]auth.Provider,
	auditService *AuditService,
	m core.Recorder,
	userCache core.Cache[models.User],
) *UserService {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	if providers == nil {
		providers = map[string]auth.Provider{}
	}
	return &UserService{
		store:        s,
		config:       cfg,
		passwords:    passwords,
		tokens:       tokens,
		notifier:     notifier,
		hooks:        hooks,
		providers:    providers,
		auditService: auditService,
		metrics:      m,
		userCache:    userCache,
		userCacheTTL: cfg.UserCacheTTL,
	}
}

// AddUser creates a user programmatically with the given verification and active
// status. The configured identifier must not be taken (case-insensitive).
func (s *UserService) AddUser(
	ctx context.Context,
	user *models.User,
	verify, activate bool,
) (*models.User, error) {
	kind := s.config.UserAuthIdentifier
	identifier := user.Identifier(kind)
	if identifier == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, kind)
	}

	exists, err := s.store.UserExistsByIdentifier(ctx, kind, identifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrIdentifierTaken, kind)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.IsVerified = verify
	user.IsActive = activate

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, mapIdentifierConflict(err)
	}
	return user, nil
}

// Register creates a user from sign-up data and starts verification when required
func (s *UserService) Register(ctx context.Context, input RegistrationInput) (*models.User, error) {
	if err := s.hooks.PreRegistration(ctx, &input); err != nil {
		return nil, err
	}

	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if input.Username != nil {
		trimmed := strings.TrimSpace(*input.Username)
		input.Username = &trimmed
		if trimmed == "" {
			input.Username = nil
		}
	}
	if s.config.UserAuthIdentifier == config.IdentifierUsername &&
		(input.Username == nil || *input.Username == "") {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	requireVerification := s.config.RequireVerificationOnRegistration
	user, err := s.AddUser(ctx, &models.User{
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
	}, !requireVerification, true)
	if err != nil {
		s.metrics.RecordRegistration("password", false)
		return nil, err
	}

	if requireVerification {
		if err := s.InitiateVerification(ctx, user); err != nil {
			log.Printf("[Auth] Failed to send verification token to user=%s: %v", user.ID, err)
		}
	}

	if err := s.hooks.PostRegistration(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration("password", true)
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventUserRegistered,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "User registered",
		Details: models.AuditDetails{
			"requires_verification": requireVerification,
		},
		Success: true,
	})

	return user, nil
}

// GetUser returns a user by ID through the user cache
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	fetch := func(ctx context.Context, _ string) (models.User, error) {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return models.User{}, err
		}
		return *u, nil
	}

	user, err := s.userCache.GetWithFetch(ctx, userCacheKeyPrefix+id, s.userCacheTTL, fetch)
	if errors.Is(err, cache.ErrCacheUnavailable) {
		log.Printf("[Cache] user cache unavailable, reading user %s from database: %v", id, err)
		user, err = fetch(ctx, id)
	}
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.metrics.RecordDatabaseQueryError("get_user")
		return nil, err
	}
	return &user, nil
}

// GetUserBy returns a user by "email" or "username", ignoring case
func (s *UserService) GetUserBy(ctx context.Context, kind, value string) (*models.User, error) {
	user, err := s.store.GetUserByIdentifier(ctx, kind, value)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of users
func (s *UserService) ListUsers(
	ctx context.Context,
	params store.PaginationParams,
) ([]models.User, store.PaginationResult, error) {
	users, pagination, err := s.store.ListUsers(ctx, params)
	if err != nil {
		s.metrics.RecordDatabaseQueryError("list_users")
		return nil, store.PaginationResult{}, err
	}
	return users, pagination, nil
}

// UpdateUser applies the update to a user. A new password is validated and hashed.
func (s *UserService) UpdateUser(
	ctx context.Context,
	id string,
	update UserUpdate,
) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	changed := []string{}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
		}
		user.Email = email
		changed = append(changed, "email")
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			if s.config.UserAuthIdentifier == config.IdentifierUsername {
				return nil, fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
			}
			user.Username = nil
		} else {
			user.Username = &username
		}
		changed = append(changed, "username")
	}
	if update.Password != nil {
		hash, err := s.hashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
		changed = append(changed, "is_active")
	}
	if update.IsVerified != nil {
		user.IsVerified = *update.IsVerified
		changed = append(changed, "is_verified")
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, mapIdentifierConflict(err)
	}
	s.InvalidateUserCache(ctx, id)

	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventUserUpdated,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "User updated",
		Details:      models.AuditDetails{"fields": changed},
		Success:      true,
	})

	return user, nil
}

// DeleteUser deletes a user and returns the deleted record
func (s *UserService) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.InvalidateUserCache(ctx, id)

	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventUserDeleted,
		Severity:     models.SeverityWarning,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "User deleted",
		Success:      true,
	})

	return user, nil
}

// InvalidateUserCache drops the cached copy of a user
func (s *UserService) InvalidateUserCache(ctx context.Context, id string) {
	if err := s.userCache.Delete(ctx, userCacheKeyPrefix+id); err != nil {
		log.Printf("[Cache] Failed to invalidate user=%s: %v", id, err)
	}
}

// hashPassword validates the password policy and hashes with the primary scheme
func (s *UserService) hashPassword(pw string) (string, error) {
	if err := s.passwords.Validate(pw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	hash, err := s.passwords.Hash(pw)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *UserService) audit(ctx context.Context, entry AuditLogEntry) {
	if s.auditService != nil {
		s.auditService.Log(ctx, entry)
	}
}

func mapIdentifierConflict(err error) error {
	switch {
	case errors.Is(err, store.ErrEmailConflict):
		return fmt.Errorf("%w: email", ErrIdentifierTaken)
	case errors.Is(err, store.ErrUsernameConflict):
		return fmt.Errorf("%w: username", ErrIdentifierTaken)
	case errors.Is(err, store.ErrUserConflict):
		return ErrIdentifierTaken
	}
	return err
}
