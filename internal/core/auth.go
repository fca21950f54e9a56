package core

import (
	"github.com/go-authgate/usergate/internal/models"

	"github.com/gin-gonic/gin"
)

// AuthBackend persists an authenticated identity across requests.
// Session, JWT header and JWT cookie backends satisfy this interface.
type AuthBackend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Login attaches the user's identity to the response (session cookie or token)
	Login(c *gin.Context, user *models.User) error

	// Identify returns the user ID carried by the request, or ErrUnauthenticated
	Identify(c *gin.Context) (string, error)

	// Logout discards the identity carried by the request
	Logout(c *gin.Context) error
}
