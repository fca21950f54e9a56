package handlers

import (
	"log"
	"net/http"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves login and logout for the configured auth backend
type AuthHandler struct {
	userService  *services.UserService
	backend      core.AuthBackend
	auditService *services.AuditService
	metrics      core.Recorder
}

func NewAuthHandler(
	us *services.UserService,
	backend core.AuthBackend,
	auditService *services.AuditService,
	m core.Recorder,
) *AuthHandler {
	return &AuthHandler{
		userService:  us,
		backend:      backend,
		auditService: auditService,
		metrics:      m,
	}
}

func (h *AuthHandler) usesSession() bool {
	return h.backend.Name() == config.AuthBackendSession
}

// Login checks the credentials and starts a session or issues an access token.
// Token backends refuse unverified users.
func (h *AuthHandler) Login(c *gin.Context) {
	var creds services.Credentials
	if !bindJSON(c, &creds) {
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), creds)
	if err != nil {
		if h.usesSession() {
			h.clearSession(c)
		}
		respondError(c, err)
		return
	}

	if !user.IsActive {
		respondDetail(c, http.StatusForbidden, services.ErrUserNotActive.Error())
		return
	}
	if !h.usesSession() && !user.IsVerified {
		respondDetail(c, http.StatusForbidden, services.ErrUserNotVerified.Error())
		return
	}

	if err := h.backend.Login(c, user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.ToRead())
}

// Logout ends the session or revokes the access token
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	claims, hasClaims := auth.ClaimsFromContext(c)

	if err := h.backend.Logout(c); err != nil {
		respondError(c, err)
		return
	}

	h.metrics.RecordLogout(h.backend.Name())
	if hasClaims {
		h.metrics.RecordTokenRevoked("logout")
	}

	if h.auditService != nil && user != nil {
		details := models.AuditDetails{"backend": h.backend.Name()}
		if hasClaims {
			details["jti"] = claims.ID
		}
		h.auditService.Log(c, services.AuditLogEntry{
			EventType:     models.EventLogout,
			Severity:      models.SeverityInfo,
			ActorUserID:   user.ID,
			ActorUsername: user.DisplayName(),
			ResourceType:  models.ResourceSession,
			ResourceID:    user.ID,
			Action:        "User logged out",
			Details:       details,
			Success:       true,
		})
	}

	c.Status(http.StatusCreated)
}

func (h *AuthHandler) clearSession(c *gin.Context) {
	if err := h.backend.Logout(c); err != nil {
		log.Printf("[Auth] Failed to clear session after failed login: %v", err)
	}
}
