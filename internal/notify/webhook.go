package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/go-authgate/usergate/internal/models"

	retry "github.com/appleboy/go-httpretry"
)

// WebhookPayload is the JSON body posted to the webhook URL
type WebhookPayload struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// WebhookNotifier posts notifications to an external delivery service (mailer,
// queue bridge) which is responsible for reaching the user.
type WebhookNotifier struct {
	url    string
	client *retry.Client
}

func NewWebhookNotifier(url string, client *retry.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client}
}

func (n *WebhookNotifier) SendVerificationToken(
	ctx context.Context,
	user *models.User,
	token string,
) error {
	return n.send(ctx, EventVerification, user, token)
}

func (n *WebhookNotifier) SendPasswordResetToken(
	ctx context.Context,
	user *models.User,
	token string,
) error {
	return n.send(ctx, EventPasswordReset, user, token)
}

func (n *WebhookNotifier) send(
	ctx context.Context,
	event string,
	user *models.User,
	token string,
) error {
	body, err := json.Marshal(WebhookPayload{
		Event:  event,
		UserID: user.ID,
		Email:  user.Email,
		Token:  token,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := n.client.Post(ctx, n.url, retry.WithBody("application/json", bytes.NewBuffer(body)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: HTTP %d - %s", ErrDeliveryFailed, resp.StatusCode, preview)
	}

	log.Printf("[Notify] %s webhook delivered for user %s", event, user.ID)
	return nil
}
