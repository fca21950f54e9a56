package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRoleNotFound),
		errors.Is(err, services.ErrOAuthProviderNotFound),
		errors.Is(err, services.ErrOAuthAccountNotFound):
		return http.StatusNotFound

	case errors.Is(err, services.ErrIdentifierTaken),
		errors.Is(err, services.ErrRoleNameTaken),
		errors.Is(err, services.ErrRoleAlreadyAssigned),
		errors.Is(err, services.ErrRoleNotAssigned),
		errors.Is(err, services.ErrOAuthAccountLinked):
		return http.StatusConflict

	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, services.ErrUserNotVerified),
		errors.Is(err, services.ErrOAuthAutoRegisterDisabled):
		return http.StatusForbidden

	case errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUserAlreadyExists),
		errors.Is(err, services.ErrUserNotActive),
		errors.Is(err, services.ErrOAuthCallbackFailed),
		errors.Is(err, services.ErrOAuthNoEmail),
		errors.Is(err, services.ErrInvalidState):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError renders err as {"status_code", "detail"}. Unexpected errors are
// logged and hidden behind a generic detail.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		detail = http.StatusText(status)
	}
	respondDetail(c, status, detail)
}

func respondDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"status_code": status, "detail": detail})
}

// bindJSON decodes the request body, answering 400 on malformed input
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondDetail(c, http.StatusBadRequest, "Validation failed for "+c.Request.Method+" "+c.Request.URL.Path)
		return false
	}
	return true
}
