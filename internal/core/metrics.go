package core

import (
	"context"
	"time"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Account lifecycle
	RecordRegistration(source string, success bool)
	RecordVerification(success bool)
	RecordPasswordResetRequested()
	RecordPasswordReset(success bool)

	// Authentication
	RecordLogin(backend string, success bool, duration time.Duration)
	RecordLogout(backend string)
	RecordOAuthCallback(provider string, success bool)
	RecordExternalAPICall(provider string, duration time.Duration)
	RecordTokenRevoked(reason string)

	// Role management
	RecordRoleChange(operation string)

	// Gauge Setters (for periodic updates)
	SetUserCounts(total, active, verified int64)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by CacheWrapper.
type MetricsStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context) (int64, error)
	CountVerifiedUsers(ctx context.Context) (int64, error)
}
