package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-authgate/usergate/internal/auth"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware protects the metrics endpoint with a static Bearer token.
// An empty token leaves the endpoint open.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
			abortWithDetail(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		// Constant-time comparison
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
			abortWithDetail(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Next()
	}
}
