package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
)

// OAuthHandler serves the OAuth2 login and account association flows
type OAuthHandler struct {
	userService   *services.UserService
	backend       core.AuthBackend
	auditService  *services.AuditService
	baseURL       string
	associatePath string
}

// NewOAuthHandler creates the OAuth2 handler. associatePath is the route prefix
// of the associate flow, used to build its callback URL.
func NewOAuthHandler(
	us *services.UserService,
	backend core.AuthBackend,
	auditService *services.AuditService,
	baseURL string,
	associatePath string,
) *OAuthHandler {
	return &OAuthHandler{
		userService:   us,
		backend:       backend,
		auditService:  auditService,
		baseURL:       strings.TrimRight(baseURL, "/"),
		associatePath: associatePath,
	}
}

// Authorize returns the provider's authorization URL.
// Query: scopes (repeatable), code_challenge (S256, optional).
func (h *OAuthHandler) Authorize(c *gin.Context) {
	h.authorize(c, services.OAuth2AuthorizeInput{
		Provider:      c.Param("provider"),
		Scopes:        c.QueryArray("scopes"),
		CodeChallenge: c.Query("code_challenge"),
	})
}

// AssociateAuthorize starts linking a provider account to the current user
func (h *OAuthHandler) AssociateAuthorize(c *gin.Context) {
	user := middleware.CurrentUser(c)
	provider := c.Param("provider")
	h.authorize(c, services.OAuth2AuthorizeInput{
		Provider:      provider,
		RedirectURL:   h.associateCallbackURL(provider),
		Scopes:        c.QueryArray("scopes"),
		CodeChallenge: c.Query("code_challenge"),
		StateData:     map[string]string{"sub": user.ID},
	})
}

func (h *OAuthHandler) authorize(c *gin.Context, input services.OAuth2AuthorizeInput) {
	result, err := h.userService.OAuth2Authorize(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Callback completes a provider login and logs the user in
func (h *OAuthHandler) Callback(c *gin.Context) {
	user, err := h.userService.OAuth2Callback(c.Request.Context(), callbackInput(c))
	if err != nil {
		log.Printf("[OAuth] Callback failed for provider=%s: %v", c.Param("provider"), err)
		respondError(c, err)
		return
	}
	if !user.IsActive {
		respondDetail(c, http.StatusBadRequest, services.ErrUserNotActive.Error())
		return
	}
	h.login(c, user)
}

// AssociateCallback links the provider account to the current user
func (h *OAuthHandler) AssociateCallback(c *gin.Context) {
	current := middleware.CurrentUser(c)
	if !current.IsActive {
		respondDetail(c, http.StatusUnauthorized, services.ErrUserNotActive.Error())
		return
	}

	input := callbackInput(c)
	input.RedirectURL = h.associateCallbackURL(input.Provider)
	input.AssociateUser = current

	user, err := h.userService.OAuth2Callback(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidState) || errors.Is(err, services.ErrOAuthAccountLinked) {
			h.flagSuspicious(c, current, input.Provider, err)
		}
		respondError(c, err)
		return
	}
	h.login(c, user)
}

// Unlink removes the current user's link to the provider
func (h *OAuthHandler) Unlink(c *gin.Context) {
	user, err := h.userService.UnlinkOAuthAccount(
		c.Request.Context(),
		middleware.CurrentUser(c),
		c.Param("provider"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}

func (h *OAuthHandler) login(c *gin.Context, user *models.User) {
	if err := h.backend.Login(c, user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.ToRead())
}

func (h *OAuthHandler) associateCallbackURL(provider string) string {
	return h.baseURL + h.associatePath + "/" + provider + "/callback"
}

func (h *OAuthHandler) flagSuspicious(c *gin.Context, user *models.User, provider string, err error) {
	if h.auditService == nil {
		return
	}
	h.auditService.Log(c, services.AuditLogEntry{
		EventType:     models.EventSuspiciousActivity,
		Severity:      models.SeverityWarning,
		ActorUserID:   user.ID,
		ActorUsername: user.DisplayName(),
		ResourceType:  models.ResourceOAuthAccount,
		ResourceName:  provider,
		Action:        "OAuth2 association rejected",
		Success:       false,
		ErrorMessage:  err.Error(),
	})
}

func callbackInput(c *gin.Context) services.OAuth2CallbackInput {
	return services.OAuth2CallbackInput{
		Provider:     c.Param("provider"),
		Code:         c.Query("code"),
		CodeVerifier: c.Query("code_verifier"),
		State:        c.Query("state"),
		Error:        c.Query("error"),
	}
}
