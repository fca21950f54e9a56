package metrics

import (
	"sync"

	"github.com/go-authgate/usergate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Account lifecycle
	RegistrationsTotal          *prometheus.CounterVec
	VerificationsTotal          *prometheus.CounterVec
	PasswordResetRequestedTotal prometheus.Counter
	PasswordResetsTotal         *prometheus.CounterVec

	// Authentication
	AuthLoginTotal          *prometheus.CounterVec
	AuthLoginDuration       *prometheus.HistogramVec
	AuthLogoutTotal         *prometheus.CounterVec
	AuthOAuthCallbackTotal  *prometheus.CounterVec
	AuthExternalAPIDuration *prometheus.HistogramVec
	TokensRevokedTotal      *prometheus.CounterVec

	// Role management
	RoleChangesTotal *prometheus.CounterVec

	// Users
	UsersTotal    prometheus.Gauge
	UsersActive   prometheus.Gauge
	UsersVerified prometheus.Gauge

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		RegistrationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usergate_registrations_total",
				Help: "Total number of user registrations",
			},
			[]string{"source", "result"}, // source: password, oauth; result: success, failure
		),
		VerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usergate_verifications_total",
				Help: "Total number of account verification attempts",
			},
			[]string{"result"},
		),
		PasswordResetRequestedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "usergate_password_reset_requested_total",
				Help: "Total number of password reset requests",
			},
		),
		PasswordResetsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usergate_password_resets_total",
				Help: "Total number of password reset attempts",
			},
			[]string{"result"},
		),

		AuthLoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"backend", "result"}, // backend: session, jwt, jwt_cookie
		),
		AuthLoginDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_login_duration_seconds",
				Help:    "Time taken to check login credentials",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		AuthLogoutTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logout_total",
				Help: "Total number of logouts",
			},
			[]string{"backend"},
		),
		AuthOAuthCallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_oauth_callback_total",
				Help: "Total number of OAuth callback attempts",
			},
			[]string{"provider", "result"}, // provider: github, gitea, oidc; result: success, error
		),
		AuthExternalAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_external_api_duration_seconds",
				Help:    "Time taken for OAuth provider code exchange and identity calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_revoked_total",
				Help: "Total number of access tokens revoked",
			},
			[]string{"reason"}, // logout
		),

		RoleChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usergate_role_changes_total",
				Help: "Total number of role management operations",
			},
			[]string{"operation"}, // create, update, delete, assign, revoke
		),

		UsersTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "usergate_users_total",
				Help: "Current number of users",
			},
		),
		UsersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "usergate_users_active",
				Help: "Current number of active users",
			},
		),
		UsersVerified: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "usergate_users_verified",
				Help: "Current number of verified users",
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"}, // count_users, get_user, list_users
		),
	}

	return m
}
