package core

import (
	"context"

	"github.com/go-authgate/usergate/internal/models"
)

// Notifier delivers one-time tokens to users (verification and password reset).
type Notifier interface {
	SendVerificationToken(ctx context.Context, user *models.User, token string) error
	SendPasswordResetToken(ctx context.Context, user *models.User, token string) error
}
