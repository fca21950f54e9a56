package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authgate/usergate/internal/client"
	"github.com/go-authgate/usergate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookNotifier(t *testing.T, url string) *WebhookNotifier {
	t.Helper()
	c, err := client.CreateRetryClient(client.RetryOptions{
		AuthMode:      "simple",
		AuthSecret:    "hook-secret",
		AuthHeader:    "X-Webhook-Secret",
		Timeout:       2 * time.Second,
		MaxRetries:    0,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return NewWebhookNotifier(url, c)
}

func TestWebhookNotifier_Payload(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "hook-secret", r.Header.Get("X-Webhook-Secret"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := newWebhookNotifier(t, srv.URL)
	user := &models.User{ID: "u-1", Email: "alice@example.com"}

	require.NoError(t, n.SendVerificationToken(context.Background(), user, "tok-verify"))
	assert.Equal(t, WebhookPayload{
		Event:  EventVerification,
		UserID: "u-1",
		Email:  "alice@example.com",
		Token:  "tok-verify",
	}, got)

	require.NoError(t, n.SendPasswordResetToken(context.Background(), user, "tok-reset"))
	assert.Equal(t, EventPasswordReset, got.Event)
	assert.Equal(t, "tok-reset", got.Token)
}

func TestWebhookNotifier_RejectedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("unknown template"))
	}))
	defer srv.Close()

	err := newWebhookNotifier(t, srv.URL).
		SendVerificationToken(context.Background(), &models.User{ID: "u-2"}, "tok")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	user := &models.User{ID: "u-3", Email: "bob@example.com"}
	assert.NoError(t, n.SendVerificationToken(context.Background(), user, "abc"))
	assert.NoError(t, n.SendPasswordResetToken(context.Background(), user, "abc"))
	assert.Equal(t, "abc", truncate("abc"))
	assert.Equal(t, "0123456789ab...", truncate("0123456789abcdef"))
}
