package auth

import (
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys
const (
	SessionUserID       = "user_id"
	SessionLastActivity = "last_activity"
)

var _ core.AuthBackend = (*SessionBackend)(nil)

// SessionBackend keeps the user ID in a server-signed session cookie
type SessionBackend struct {
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionBackend creates a session backend. idleTimeout of 0 disables idle expiry.
func NewSessionBackend(idleTimeout time.Duration) *SessionBackend {
	return &SessionBackend{idleTimeout: idleTimeout, now: time.Now}
}

func (b *SessionBackend) Name() string {
	return config.AuthBackendSession
}

// Login starts a fresh session for user
func (b *SessionBackend) Login(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(SessionUserID, user.ID)
	session.Set(SessionLastActivity, b.now().Unix())
	return session.Save()
}

// Identify returns the session's user ID and refreshes its activity timestamp
func (b *SessionBackend) Identify(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	userID, ok := session.Get(SessionUserID).(string)
	if !ok || userID == "" {
		return "", ErrUnauthenticated
	}

	if b.idleTimeout > 0 {
		now := b.now()
		last, _ := session.Get(SessionLastActivity).(int64)
		if now.Sub(time.Unix(last, 0)) > b.idleTimeout {
			session.Clear()
			if err := session.Save(); err != nil {
				log.Printf("[Auth] failed to clear expired session: %v", err)
			}
			return "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrSessionExpired)
		}
		session.Set(SessionLastActivity, now.Unix())
		if err := session.Save(); err != nil {
			log.Printf("[Auth] failed to refresh session activity: %v", err)
		}
	}

	return userID, nil
}

// Logout clears the session and expires its cookie
func (b *SessionBackend) Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}
