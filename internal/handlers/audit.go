package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	// queryValueTrue represents the string "true" used in query parameters
	queryValueTrue = "true"

	exportLimit = 10000
)

// AuditHandler handles audit log operations
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// parseTime reads an RFC3339 query parameter, ignoring malformed values
func parseTime(c *gin.Context, key string) time.Time {
	if v := c.Query(key); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseAuditFilters(c *gin.Context) store.AuditLogFilters {
	filters := store.AuditLogFilters{
		EventType:    models.EventType(c.Query("event_type")),
		ActorUserID:  c.Query("actor_user_id"),
		ResourceType: models.ResourceType(c.Query("resource_type")),
		ResourceID:   c.Query("resource_id"),
		Severity:     models.EventSeverity(c.Query("severity")),
		ActorIP:      c.Query("actor_ip"),
		Search:       c.Query("search"),
		StartTime:    parseTime(c, "start_time"),
		EndTime:      parseTime(c, "end_time"),
	}

	// Optional boolean
	if successStr := c.Query("success"); successStr != "" {
		success := successStr == queryValueTrue
		filters.Success = &success
	}
	return filters
}

// ListAuditLogs retrieves audit logs with pagination and filtering
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize, c.Query("search"))
	filters := parseAuditFilters(c)

	logs, pagination, err := h.auditService.GetAuditLogs(c.Request.Context(), params, filters)
	if err != nil {
		respondError(c, fmt.Errorf("failed to retrieve audit logs: %w", err))
		return
	}

	h.logAccess(c, models.EventTypeAuditLogView, "Viewed audit logs", models.AuditDetails{
		"page":      params.Page,
		"page_size": params.PageSize,
		"filters":   filters,
	})

	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": pagination,
	})
}

// GetAuditLogStats returns statistics about audit logs, over the last 30 days
// unless a time range is given
func (h *AuditHandler) GetAuditLogStats(c *gin.Context) {
	startTime := parseTime(c, "start_time")
	endTime := parseTime(c, "end_time")

	if startTime.IsZero() && endTime.IsZero() {
		endTime = time.Now()
		startTime = endTime.Add(-30 * 24 * time.Hour)
	}

	stats, err := h.auditService.GetAuditLogStats(c.Request.Context(), startTime, endTime)
	if err != nil {
		respondError(c, fmt.Errorf("failed to retrieve audit log statistics: %w", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":      stats,
		"start_time": startTime,
		"end_time":   endTime,
	})
}

// ExportAuditLogs exports up to 10k matching audit logs as CSV
func (h *AuditHandler) ExportAuditLogs(c *gin.Context) {
	filters := parseAuditFilters(c)
	params := store.PaginationParams{Page: 1, PageSize: exportLimit}

	logs, _, err := h.auditService.GetAuditLogs(c.Request.Context(), params, filters)
	if err != nil {
		respondError(c, fmt.Errorf("failed to retrieve audit logs: %w", err))
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(
		"attachment; filename=audit_logs_%s.csv",
		time.Now().Format("2006-01-02"),
	))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{
		"Event Time",
		"Event Type",
		"Severity",
		"Actor Username",
		"Actor IP",
		"Resource Type",
		"Resource Name",
		"Action",
		"Success",
		"Error Message",
	}); err != nil {
		return
	}

	for _, entry := range logs {
		successStr := "Yes"
		if !entry.Success {
			successStr = "No"
		}

		if err := writer.Write([]string{
			entry.EventTime.Format(time.RFC3339),
			string(entry.EventType),
			string(entry.Severity),
			entry.ActorUsername,
			entry.ActorIP,
			string(entry.ResourceType),
			entry.ResourceName,
			entry.Action,
			successStr,
			entry.ErrorMessage,
		}); err != nil {
			return
		}
	}

	h.logAccess(c, models.EventTypeAuditLogExported, "Exported audit logs to CSV", models.AuditDetails{
		"record_count": len(logs),
		"filters":      filters,
	})
}

func (h *AuditHandler) logAccess(
	c *gin.Context,
	eventType models.EventType,
	action string,
	details models.AuditDetails,
) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return
	}
	h.auditService.Log(c, services.AuditLogEntry{
		EventType:     eventType,
		Severity:      models.SeverityInfo,
		ActorUserID:   user.ID,
		ActorUsername: user.DisplayName(),
		Action:        action,
		Details:       details,
		Success:       true,
	})
}
