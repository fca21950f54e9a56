package models

import (
	"context"

	"github.com/gin-gonic/gin"
)

type userContextKey struct{}

// ContextKeyUser is the gin context key holding the authenticated *User
const ContextKeyUser = "user"

// SetUserContext returns a copy of ctx carrying the authenticated user
func SetUserContext(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUserFromContext returns the authenticated user carried by ctx, or nil.
// Gin contexts are checked for the user set by the authentication middleware first.
func GetUserFromContext(ctx context.Context) *User {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if userVal, exists := ginCtx.Get(ContextKeyUser); exists {
			if user, ok := userVal.(*User); ok {
				return user
			}
		}
		if ginCtx.Request == nil {
			return nil
		}
		ctx = ginCtx.Request.Context()
	}

	if user, ok := ctx.Value(userContextKey{}).(*User); ok {
		return user
	}
	return nil
}

// GetUsernameFromContext returns the display name of the authenticated user, or "".
func GetUsernameFromContext(ctx context.Context) string {
	if user := GetUserFromContext(ctx); user != nil {
		return user.DisplayName()
	}
	return ""
}
