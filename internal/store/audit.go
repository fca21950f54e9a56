package store

import (
	"context"
	"time"

	"github.com/go-authgate/usergate/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// CreateAuditLogBatch inserts audit logs in batches of 100
func (s *Store) CreateAuditLogBatch(ctx context.Context, entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

func applyAuditFilters(query *gorm.DB, filters AuditLogFilters) *gorm.DB {
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.ActorUserID != "" {
		query = query.Where("actor_user_id = ?", filters.ActorUserID)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	if !filters.StartTime.IsZero() {
		query = query.Where("event_time >= ?", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		query = query.Where("event_time <= ?", filters.EndTime)
	}
	if filters.ActorIP != "" {
		query = query.Where("actor_ip = ?", filters.ActorIP)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where(
			"action LIKE ? OR resource_name LIKE ? OR actor_username LIKE ?",
			pattern, pattern, pattern,
		)
	}
	return query
}

// GetAuditLogsPaginated returns audit logs newest first
func (s *Store) GetAuditLogsPaginated(
	ctx context.Context,
	params PaginationParams,
	filters AuditLogFilters,
) ([]models.AuditLog, PaginationResult, error) {
	base := func() *gorm.DB {
		return applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.AuditLog
	if err := base().
		Order("event_time DESC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&logs).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// GetAuditLogStats aggregates audit logs between startTime and endTime
func (s *Store) GetAuditLogStats(
	ctx context.Context,
	startTime, endTime time.Time,
) (AuditLogStats, error) {
	stats := AuditLogStats{
		EventsByType:     make(map[models.EventType]int64),
		EventsBySeverity: make(map[models.EventSeverity]int64),
	}

	base := func() *gorm.DB {
		return applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), AuditLogFilters{
			StartTime: startTime,
			EndTime:   endTime,
		})
	}

	if err := base().Count(&stats.TotalEvents).Error; err != nil {
		return stats, err
	}

	var byType []struct {
		EventType models.EventType
		Count     int64
	}
	if err := base().Select("event_type, COUNT(*) AS count").Group("event_type").Scan(&byType).Error; err != nil {
		return stats, err
	}
	for _, row := range byType {
		stats.EventsByType[row.EventType] = row.Count
	}

	var bySeverity []struct {
		Severity models.EventSeverity
		Count    int64
	}
	if err := base().Select("severity, COUNT(*) AS count").Group("severity").Scan(&bySeverity).Error; err != nil {
		return stats, err
	}
	for _, row := range bySeverity {
		stats.EventsBySeverity[row.Severity] = row.Count
	}

	if err := base().Where("success = ?", true).Count(&stats.SuccessCount).Error; err != nil {
		return stats, err
	}
	stats.FailureCount = stats.TotalEvents - stats.SuccessCount

	return stats, nil
}

// DeleteOldAuditLogs deletes audit logs created before cutoff
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
