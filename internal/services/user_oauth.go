package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/store"
	"github.com/go-authgate/usergate/internal/token"

	"github.com/google/uuid"
)

// OAuth2AuthorizeInput describes an authorization request to a provider
type OAuth2AuthorizeInput struct {
	Provider      string
	RedirectURL   string // callback URL; the provider's configured URL when empty
	Scopes        []string
	CodeChallenge string            // S256 PKCE challenge, optional
	StateData     map[string]string // signed into the state token; "sub" becomes its subject
}

// OAuth2Authorization is returned by OAuth2Authorize
type OAuth2Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
}

// OAuth2CallbackInput carries the provider's redirect back to the callback route
type OAuth2CallbackInput struct {
	Provider     string
	Code         string
	CodeVerifier string
	State        string
	Error        string
	RedirectURL  string

	// AssociateUser is set for associate callbacks; the account is linked to this user
	AssociateUser *models.User
}

// Providers returns the names of the configured OAuth2 providers
func (s *UserService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

func (s *UserService) provider(name string) (auth.Provider, error) {
	if len(s.providers) == 0 {
		return nil, ErrOAuthNotConfigured
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOAuthProviderNotFound, name)
	}
	return p, nil
}

// GetByOAuthAccount returns the user linked to a provider account
func (s *UserService) GetByOAuthAccount(
	ctx context.Context,
	oauthName, accountID string,
) (*models.User, error) {
	if len(s.providers) == 0 {
		return nil, ErrOAuthNotConfigured
	}
	account, err := s.store.GetOAuthAccount(ctx, oauthName, accountID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrOAuthAccountNotFound
		}
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, account.UserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// OAuth2Authorize signs a state token and builds the provider's authorization URL
func (s *UserService) OAuth2Authorize(
	_ context.Context,
	input OAuth2AuthorizeInput,
) (*OAuth2Authorization, error) {
	p, err := s.provider(input.Provider)
	if err != nil {
		return nil, err
	}

	data := input.StateData
	if data == nil {
		data = map[string]string{}
	}
	// Sign-in states carry no user; a nonce keeps the subject non-empty.
	subject := data["sub"]
	if subject == "" {
		subject = "state:" + uuid.New().String()
	}
	state, err := s.tokens.Generate(
		subject,
		token.AudienceOAuth2State,
		s.tokenLifetime(token.AudienceOAuth2State),
		data,
	)
	if err != nil {
		return nil, err
	}

	return &OAuth2Authorization{
		AuthorizationURL: p.AuthorizationURL(
			input.RedirectURL,
			state.Token,
			input.Scopes,
			input.CodeChallenge,
		),
	}, nil
}

// OAuth2Callback completes an authorization: the code is exchanged, the
// provider identity resolved, and the account either refreshed, linked or
// registered.
//
// For a regular callback:
//   - a known provider account has its tokens refreshed;
//   - an unknown account whose email belongs to a user is linked to that user when
//     associate-by-email is on, otherwise ErrUserAlreadyExists is returned;
//   - otherwise a new user is created, unless auto-registration is off.
//
// For an associate callback the state subject must match AssociateUser.
func (s *UserService) OAuth2Callback(
	ctx context.Context,
	input OAuth2CallbackInput,
) (*models.User, error) {
	p, err := s.provider(input.Provider)
	if err != nil {
		return nil, err
	}

	user, err := s.oauth2Callback(ctx, p, input)
	s.metrics.RecordOAuthCallback(p.Name(), err == nil)
	if err != nil {
		s.audit(ctx, AuditLogEntry{
			EventType:    models.EventOAuthAuthentication,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceOAuthAccount,
			ResourceName: p.Name(),
			Action:       "OAuth2 callback failed",
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}
	return user, nil
}

func (s *UserService) oauth2Callback(
	ctx context.Context,
	p auth.Provider,
	input OAuth2CallbackInput,
) (*models.User, error) {
	if input.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrOAuthCallbackFailed, input.Error)
	}
	if input.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrOAuthCallbackFailed)
	}

	claims, err := s.tokens.Decode(input.State, token.AudienceOAuth2State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if input.AssociateUser != nil && claims.Subject != input.AssociateUser.ID {
		return nil, ErrInvalidState
	}

	code := strings.ReplaceAll(input.Code, "%2F", "/")

	start := time.Now()
	tok, err := p.Exchange(ctx, code, input.RedirectURL, input.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthCallbackFailed, err)
	}
	accountID, email, err := p.IDEmail(ctx, tok)
	s.metrics.RecordExternalAPICall(p.Name(), time.Since(start))
	if err != nil {
		if errors.Is(err, auth.ErrOAuthNoEmail) {
			return nil, ErrOAuthNoEmail
		}
		return nil, fmt.Errorf("%w: %w", ErrOAuthCallbackFailed, err)
	}
	if email == "" {
		return nil, ErrOAuthNoEmail
	}

	account := &models.OAuthAccount{
		OAuthName:    p.Name(),
		AccountID:    accountID,
		AccountEmail: email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    auth.ExpiresAt(tok),
	}

	if input.AssociateUser != nil {
		return s.associateAccount(ctx, input.AssociateUser, account)
	}
	return s.loginWithAccount(ctx, account)
}

// loginWithAccount resolves the user for a regular callback
func (s *UserService) loginWithAccount(
	ctx context.Context,
	account *models.OAuthAccount,
) (*models.User, error) {
	existing, err := s.store.GetOAuthAccount(ctx, account.OAuthName, account.AccountID)
	switch {
	case err == nil:
		refreshAccount(existing, account)
		if err := s.store.UpdateOAuthAccount(ctx, existing); err != nil {
			return nil, err
		}
		s.InvalidateUserCache(ctx, existing.UserID)
		user, err := s.store.GetUserByID(ctx, existing.UserID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		s.auditOAuth(ctx, user, account, "OAuth2 login")
		return user, nil
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, account.AccountEmail)
	switch {
	case err == nil:
		if !s.config.OAuth2AssociateByEmail {
			return nil, ErrUserAlreadyExists
		}
		return s.linkAccount(ctx, user, account)
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	if !s.config.OAuthAutoRegister {
		return nil, ErrOAuthAutoRegisterDisabled
	}
	return s.registerFromAccount(ctx, account)
}

// registerFromAccount creates a user for a provider account seen for the first time
func (s *UserService) registerFromAccount(
	ctx context.Context,
	account *models.OAuthAccount,
) (*models.User, error) {
	pw, err := s.passwords.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := s.passwords.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        account.AccountEmail,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   s.config.OAuth2IsVerifiedByDefault,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		s.metrics.RecordRegistration("oauth", false)
		if errors.Is(err, store.ErrEmailConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	user, err = s.linkAccount(ctx, user, account)
	if err != nil {
		return nil, err
	}

	if err := s.hooks.PostRegistration(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration("oauth", true)
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventUserRegistered,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       "User registered through OAuth2",
		Details:      models.AuditDetails{"provider": account.OAuthName},
		Success:      true,
	})
	log.Printf("[OAuth] New user created: %s (provider=%s)", user.Email, account.OAuthName)
	return user, nil
}

// associateAccount links the provider account to the current user, refreshing
// the tokens when it is already linked to them
func (s *UserService) associateAccount(
	ctx context.Context,
	user *models.User,
	account *models.OAuthAccount,
) (*models.User, error) {
	existing, err := s.store.GetOAuthAccount(ctx, account.OAuthName, account.AccountID)
	switch {
	case err == nil:
		if existing.UserID != user.ID {
			return nil, ErrOAuthAccountLinked
		}
		refreshAccount(existing, account)
		if err := s.store.UpdateOAuthAccount(ctx, existing); err != nil {
			return nil, err
		}
		s.InvalidateUserCache(ctx, user.ID)
		return s.store.GetUserByID(ctx, user.ID)
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}
	return s.linkAccount(ctx, user, account)
}

// linkAccount stores a new OAuth account for the user and reloads the user
func (s *UserService) linkAccount(
	ctx context.Context,
	user *models.User,
	account *models.OAuthAccount,
) (*models.User, error) {
	account.ID = uuid.New().String()
	account.UserID = user.ID
	if err := s.store.AddOAuthAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrOAuthAccountConflict) {
			return nil, ErrOAuthAccountLinked
		}
		return nil, err
	}
	s.InvalidateUserCache(ctx, user.ID)

	linked, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventOAuthAccountLinked,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceOAuthAccount,
		ResourceID:   account.ID,
		ResourceName: account.OAuthName,
		Action:       "OAuth account linked",
		Details: models.AuditDetails{
			"provider":   account.OAuthName,
			"account_id": account.AccountID,
		},
		Success: true,
	})
	return linked, nil
}

// UnlinkOAuthAccount removes the user's link to a provider and returns the
// refreshed user. Links to providers no longer configured can still be removed.
func (s *UserService) UnlinkOAuthAccount(
	ctx context.Context,
	user *models.User,
	oauthName string,
) (*models.User, error) {
	if len(s.providers) == 0 {
		return nil, ErrOAuthNotConfigured
	}

	accounts, err := s.store.GetOAuthAccountsByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	var account *models.OAuthAccount
	for i := range accounts {
		if accounts[i].OAuthName == oauthName {
			account = &accounts[i]
			break
		}
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrOAuthAccountNotFound, oauthName)
	}

	if err := s.store.DeleteOAuthAccount(ctx, account.ID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOAuthAccountNotFound, oauthName)
		}
		return nil, err
	}
	s.InvalidateUserCache(ctx, user.ID)

	s.audit(ctx, AuditLogEntry{
		EventType:     models.EventOAuthAccountUnlinked,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.DisplayName(),
		ResourceType:  models.ResourceOAuthAccount,
		ResourceID:    account.ID,
		ResourceName:  account.OAuthName,
		Action:        "OAuth account unlinked",
		Details: models.AuditDetails{
			"provider":   account.OAuthName,
			"account_id": account.AccountID,
		},
		Success: true,
	})
	log.Printf("[OAuth] Unlinked %s account %s from user %s", account.OAuthName, account.AccountID, user.ID)

	return s.GetUser(ctx, user.ID)
}

func (s *UserService) auditOAuth(
	ctx context.Context,
	user *models.User,
	account *models.OAuthAccount,
	action string,
) {
	s.audit(ctx, AuditLogEntry{
		EventType:     models.EventOAuthAuthentication,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.DisplayName(),
		ResourceType:  models.ResourceOAuthAccount,
		ResourceName:  account.OAuthName,
		Action:        action,
		Details:       models.AuditDetails{"provider": account.OAuthName},
		Success:       true,
	})
}

// refreshAccount copies fresh provider tokens onto a stored account. A provider
// that omits the refresh token keeps the stored one.
func refreshAccount(existing, fresh *models.OAuthAccount) {
	existing.AccessToken = fresh.AccessToken
	existing.ExpiresAt = fresh.ExpiresAt
	existing.AccountEmail = fresh.AccountEmail
	if fresh.RefreshToken != "" {
		existing.RefreshToken = fresh.RefreshToken
	}
}
