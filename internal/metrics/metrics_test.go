package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	assert.NotNil(t, m)

	// Type assert to concrete Metrics to access fields
	metrics, ok := m.(*Metrics)
	assert.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.RegistrationsTotal)
	assert.NotNil(t, metrics.AuthLoginTotal)
	assert.NotNil(t, metrics.RoleChangesTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	assert.NotNil(t, m)

	// Type assert to NoopMetrics
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestInit_SameInstance(t *testing.T) {
	m1 := Init(true)
	m2 := Init(true)
	assert.Same(t, m1, m2, "Init should register Prometheus metrics only once")
}

func TestRecordRegistration(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("password", "success"))
	m.RecordRegistration("password", true)
	m.RecordRegistration("password", false)

	assert.Equal(t, before+1, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("password", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("password", "failure")), 1.0)
}

func TestRecordLogin(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.AuthLoginTotal.WithLabelValues("jwt", "failure"))
	m.RecordLogin("jwt", false, 20*time.Millisecond)
	m.RecordLogin("session", true, 15*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(m.AuthLoginTotal.WithLabelValues("jwt", "failure")))
}

func TestRecordOAuthCallback(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.AuthOAuthCallbackTotal.WithLabelValues("github", "error"))
	m.RecordOAuthCallback("github", false)
	m.RecordExternalAPICall("github", 300*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(m.AuthOAuthCallbackTotal.WithLabelValues("github", "error")))
}

func TestRecordAccountLifecycle(t *testing.T) {
	m := Init(true)

	m.RecordVerification(true)
	m.RecordPasswordResetRequested()
	m.RecordPasswordReset(false)
	m.RecordLogout("session")
	m.RecordTokenRevoked("logout")
	m.RecordRoleChange("assign")
	m.RecordDatabaseQueryError("count_users")
	// No error means success - prometheus metrics don't return errors for recording
}

func TestSetUserCounts(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetUserCounts(10, 8, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.UsersTotal))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.UsersActive))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.UsersVerified))
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()

	// All methods should be callable without panicking
	m.RecordRegistration("oauth", true)
	m.RecordVerification(false)
	m.RecordPasswordResetRequested()
	m.RecordPasswordReset(true)
	m.RecordLogin("session", true, time.Second)
	m.RecordLogout("jwt")
	m.RecordOAuthCallback("gitea", true)
	m.RecordExternalAPICall("gitea", time.Second)
	m.RecordTokenRevoked("logout")
	m.RecordRoleChange("create")
	m.SetUserCounts(1, 1, 1)
	m.RecordDatabaseQueryError("list_users")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/users/:user_id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	before := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/:user_id", "204"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/:user_id", "204")))
}

func TestHTTPMetricsMiddleware_Noop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unknown", normalizePath(""))
	assert.Equal(t, "/roles/:role_id", normalizePath("/roles/:role_id"))
}
