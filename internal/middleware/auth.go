package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"

	"github.com/go-authgate/usergate/internal/auth"
	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/core"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
)

// ContextKeyUserID holds the authenticated user's ID
const ContextKeyUserID = "user_id"

// CompileExcludePaths compiles the path patterns that bypass authentication
func CompileExcludePaths(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid auth exclude path %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Authenticate resolves the request's identity through backend and stores the
// active user in the context. Anonymous requests continue without a user; use
// RequireUser to reject them.
func Authenticate(
	backend core.AuthBackend,
	userService *services.UserService,
	exclude []*regexp.Regexp,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, re := range exclude {
			if re.MatchString(path) {
				c.Next()
				return
			}
		}

		userID, err := backend.Identify(c)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				log.Printf("[Auth] Failed to identify request (backend=%s): %v", backend.Name(), err)
			}
			c.Next()
			return
		}

		user, err := userService.GetUser(c.Request.Context(), userID)
		if err != nil {
			if !errors.Is(err, services.ErrUserNotFound) {
				log.Printf("[Auth] Failed to load user=%s: %v", userID, err)
			}
			c.Next()
			return
		}
		if !user.IsActive {
			c.Next()
			return
		}

		SetCurrentUser(c, user)
		c.Next()
	}
}

// SetCurrentUser stores user as the authenticated user of the request
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(models.ContextKeyUser, user)
	c.Set(ContextKeyUserID, user.ID)
	c.Request = c.Request.WithContext(models.SetUserContext(c.Request.Context(), user))
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(c *gin.Context) *models.User {
	return models.GetUserFromContext(c)
}

// RequireUser rejects requests without an authenticated user
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortWithDetail(c, http.StatusUnauthorized, "No user found in request")
			return
		}
		c.Next()
	}
}

// RolesAccepted allows users holding any of the roles
func RolesAccepted(roles ...string) gin.HandlerFunc {
	return requireRoles(roles, func(user *models.User) bool {
		for _, role := range roles {
			if user.HasRole(role) {
				return true
			}
		}
		return false
	})
}

// RolesRequired allows users holding all of the roles
func RolesRequired(roles ...string) gin.HandlerFunc {
	return requireRoles(roles, func(user *models.User) bool {
		for _, role := range roles {
			if !user.HasRole(role) {
				return false
			}
		}
		return true
	})
}

func requireRoles(roles []string, allowed func(*models.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWithDetail(c, http.StatusUnauthorized, "No user found in request")
			return
		}
		if len(roles) > 0 && !allowed(user) {
			abortWithDetail(c, http.StatusForbidden, "Insufficient privileges")
			return
		}
		c.Next()
	}
}

// Guard returns the role guard configured for a group of routes. Without roles
// it only requires an authenticated user.
func Guard(g config.GuardConfig) gin.HandlerFunc {
	if g.Mode == config.GuardRequired {
		return RolesRequired(g.Roles...)
	}
	return RolesAccepted(g.Roles...)
}
