package services

import (
	"context"

	"github.com/go-authgate/usergate/internal/models"
)

// Hooks lets the host application run its own logic around account operations.
// Returning an error from any hook aborts the operation with that error.
type Hooks interface {
	// PreLogin runs before credentials are checked. Returning false rejects the
	// login without revealing that the hook made the decision.
	PreLogin(ctx context.Context, creds Credentials) (bool, error)

	// PostLogin runs after a successful login
	PostLogin(ctx context.Context, user *models.User) error

	// PreRegistration may validate or modify the registration input
	PreRegistration(ctx context.Context, input *RegistrationInput) error

	// PostRegistration runs after a user is created by registration or OAuth2
	PostRegistration(ctx context.Context, user *models.User) error

	// PostVerification runs after a user verifies their account
	PostVerification(ctx context.Context, user *models.User) error
}

// NoopHooks accepts every operation
type NoopHooks struct{}

var _ Hooks = NoopHooks{}

func (NoopHooks) PreLogin(context.Context, Credentials) (bool, error) { return true, nil }

func (NoopHooks) PostLogin(context.Context, *models.User) error { return nil }

func (NoopHooks) PreRegistration(context.Context, *RegistrationInput) error { return nil }

func (NoopHooks) PostRegistration(context.Context, *models.User) error { return nil }

func (NoopHooks) PostVerification(context.Context, *models.User) error { return nil }
