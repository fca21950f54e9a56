package metrics

import (
	"time"

	"github.com/go-authgate/usergate/internal/core"
)

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

// Account lifecycle - noop implementations
func (n *NoopMetrics) RecordRegistration(source string, success bool) {}
func (n *NoopMetrics) RecordVerification(success bool)                {}
func (n *NoopMetrics) RecordPasswordResetRequested()                  {}
func (n *NoopMetrics) RecordPasswordReset(success bool)               {}

// Authentication - noop implementations
func (n *NoopMetrics) RecordLogin(backend string, success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordLogout(backend string)                                      {}
func (n *NoopMetrics) RecordOAuthCallback(provider string, success bool)                {}
func (n *NoopMetrics) RecordExternalAPICall(provider string, duration time.Duration)    {}
func (n *NoopMetrics) RecordTokenRevoked(reason string)                                 {}

// Role management - noop implementation
func (n *NoopMetrics) RecordRoleChange(operation string) {}

// Gauge setters - noop implementation
func (n *NoopMetrics) SetUserCounts(total, active, verified int64) {}

// Database operations - noop implementation
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
