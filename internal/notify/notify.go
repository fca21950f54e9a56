package notify

import (
	"context"
	"errors"
	"log"

	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
)

// Event names carried by notifications
const (
	EventVerification  = "verification"
	EventPasswordReset = "password_reset"
)

// ErrDeliveryFailed indicates the notification could not be delivered
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Compile-time interface checks.
var (
	_ core.Notifier = (*LogNotifier)(nil)
	_ core.Notifier = (*WebhookNotifier)(nil)
)

// LogNotifier writes notifications to the process log. Only a token prefix is logged.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendVerificationToken(
	ctx context.Context,
	user *models.User,
	token string,
) error {
	log.Printf("[Notify] verification token for %s: %s", user.Email, truncate(token))
	return nil
}

func (n *LogNotifier) SendPasswordResetToken(
	ctx context.Context,
	user *models.User,
	token string,
) error {
	log.Printf("[Notify] password reset token for %s: %s", user.Email, truncate(token))
	return nil
}

func truncate(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
