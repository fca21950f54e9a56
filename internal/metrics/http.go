package metrics

import (
	"strconv"
	"time"

	"github.com/go-authgate/usergate/internal/core"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m core.Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		// NoopMetrics or an unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath returns the route pattern (e.g., "/users/:user_id"), or "unknown"
// for requests that matched no route
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func result(success bool, failure string) string {
	if success {
		return resultSuccess
	}
	return failure
}

// RecordRegistration records a registration by source ("password" or "oauth")
func (m *Metrics) RecordRegistration(source string, success bool) {
	m.RegistrationsTotal.WithLabelValues(source, result(success, resultFailure)).Inc()
}

// RecordVerification records an account verification attempt
func (m *Metrics) RecordVerification(success bool) {
	m.VerificationsTotal.WithLabelValues(result(success, resultFailure)).Inc()
}

// RecordPasswordResetRequested records a forgot-password request
func (m *Metrics) RecordPasswordResetRequested() {
	m.PasswordResetRequestedTotal.Inc()
}

// RecordPasswordReset records a password reset attempt
func (m *Metrics) RecordPasswordReset(success bool) {
	m.PasswordResetsTotal.WithLabelValues(result(success, resultFailure)).Inc()
}

// RecordLogin records a login attempt and how long the credential check took
func (m *Metrics) RecordLogin(backend string, success bool, duration time.Duration) {
	m.AuthLoginTotal.WithLabelValues(backend, result(success, resultFailure)).Inc()
	m.AuthLoginDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordLogout records logout
func (m *Metrics) RecordLogout(backend string) {
	m.AuthLogoutTotal.WithLabelValues(backend).Inc()
}

// RecordOAuthCallback records OAuth callback
func (m *Metrics) RecordOAuthCallback(provider string, success bool) {
	m.AuthOAuthCallbackTotal.WithLabelValues(provider, result(success, resultError)).Inc()
}

// RecordExternalAPICall records external API call duration
func (m *Metrics) RecordExternalAPICall(provider string, duration time.Duration) {
	m.AuthExternalAPIDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTokenRevoked records access token revocation
func (m *Metrics) RecordTokenRevoked(reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
}

// RecordRoleChange records a role management operation
func (m *Metrics) RecordRoleChange(operation string) {
	m.RoleChangesTotal.WithLabelValues(operation).Inc()
}

// SetUserCounts sets the user gauges (for periodic updates)
func (m *Metrics) SetUserCounts(total, active, verified int64) {
	m.UsersTotal.Set(float64(total))
	m.UsersActive.Set(float64(active))
	m.UsersVerified.Set(float64(verified))
}

// RecordDatabaseQueryError records a database query error
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}

// String formats the metrics for logging
func (m *Metrics) String() string {
	return "Metrics{Users: gauges, Auth: enabled, HTTP: enabled}"
}
