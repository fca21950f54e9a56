package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuditLogs(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	entries := []services.AuditLogEntry{
		{EventType: models.EventAuthenticationSuccess, Action: "User logged in", Success: true},
		{EventType: models.EventAuthenticationFailure, Action: "Login failed", Severity: models.SeverityWarning},
		{EventType: models.EventUserRegistered, Action: "User registered", Success: true},
	}
	for _, entry := range entries {
		require.NoError(t, env.audit.LogSync(ctx, entry))
	}
}

func TestAuditLogs_Guarded(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "plain@example.com", true, true)
	plain := env.loginAs(t, "plain@example.com")

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/audit", nil, credentials{}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/audit", nil, plain).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/audit/stats", nil, plain).Code)
}

func TestListAuditLogs(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "admin@example.com", true, true, "admin")
	seedAuditLogs(t, env)
	admin := env.loginAs(t, "admin@example.com")

	w := env.do(t, http.MethodGet, "/audit?event_type=AUTHENTICATION_FAILURE&page_size=5", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Logs       []models.AuditLog      `json:"logs"`
		Pagination store.PaginationResult `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
	assert.Equal(t, models.EventAuthenticationFailure, body.Logs[0].EventType)
	assert.Equal(t, 5, body.Pagination.PageSize)

	w = env.do(t, http.MethodGet, "/audit?success=true", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, entry := range body.Logs {
		assert.True(t, entry.Success)
	}
}

func TestGetAuditLogStats(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "admin@example.com", true, true, "admin")
	seedAuditLogs(t, env)
	admin := env.loginAs(t, "admin@example.com")

	w := env.do(t, http.MethodGet, "/audit/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Stats     store.AuditLogStats `json:"stats"`
		StartTime time.Time           `json:"start_time"`
		EndTime   time.Time           `json:"end_time"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.Stats.TotalEvents, int64(3))
	assert.Equal(t, int64(1), body.Stats.EventsByType[models.EventUserRegistered])
	assert.WithinDuration(t, body.EndTime.Add(-30*24*time.Hour), body.StartTime, time.Second)
}

func TestExportAuditLogs(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "admin@example.com", true, true, "admin")
	seedAuditLogs(t, env)
	admin := env.loginAs(t, "admin@example.com")

	w := env.do(t, http.MethodGet, "/audit/export?event_type=USER_REGISTERED", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_logs_")

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Event Time", records[0][0])
	assert.Equal(t, string(models.EventUserRegistered), records[1][1])
	assert.Equal(t, "Yes", records[1][8])
}
