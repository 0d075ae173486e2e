package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/store"
	"github.com/abuseshield/federation/pkg/metrics"
)

// AuditLogService manages the append-only audit trail.
type AuditLogService struct {
	store store.AuditStore
	cfg   *config.Config
}

// NewAuditLogService creates the audit log manager.
func NewAuditLogService(s store.AuditStore, cfg *config.Config) *AuditLogService {
	return &AuditLogService{store: s, cfg: cfg}
}

// CreateEntry appends an audit entry. It never fails the caller: a failed
// audit write is logged, but the state change it describes has already
// committed and must not be rolled back by bookkeeping.
func (s *AuditLogService) CreateEntry(ctx context.Context, typ models.AuditType, message string, operatorUUID, entityUUID *string) {
	entry := &models.AuditEntry{
		OperatorUUID: operatorUUID,
		EntityUUID:   entityUUID,
		Type:         typ,
		Message:      message,
		Timestamp:    time.Now(),
	}
	if _, err := s.store.CreateAuditEntry(ctx, entry); err != nil {
		logger.Error("failed to write audit entry",
			"type", typ,
			"message", message,
			"error", err,
		)
		return
	}
	metrics.AuditEntriesWritten.WithLabelValues(string(typ)).Inc()
}

// GetEntry fetches one audit entry.
func (s *AuditLogService) GetEntry(ctx context.Context, uuid string) (*models.AuditEntry, error) {
	if !models.IsUUID(uuid) {
		return nil, models.ErrAuditEntryNotFound
	}
	return s.store.GetAuditEntry(ctx, uuid)
}

// GetEntries lists one page of the trail. A non-empty types filter
// restricts results to those entry types.
func (s *AuditLogService) GetEntries(ctx context.Context, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.AuditLogs)
	return s.store.ListAuditEntries(ctx, limit, page, types)
}

// GetEntriesByEntity lists the trail for one entity.
func (s *AuditLogService) GetEntriesByEntity(ctx context.Context, entityUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.AuditLogs)
	return s.store.ListAuditByEntity(ctx, entityUUID, limit, page, types)
}

// GetEntriesByOperator lists the trail for one operator.
func (s *AuditLogService) GetEntriesByOperator(ctx context.Context, operatorUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.AuditLogs)
	return s.store.ListAuditByOperator(ctx, operatorUUID, limit, page, types)
}

// CountRecords returns the total number of audit entries.
func (s *AuditLogService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountAuditEntries(ctx)
}

// CleanEntries prunes entries older than the given number of days.
func (s *AuditLogService) CleanEntries(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, fmt.Errorf("olderThanDays must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return s.store.CleanAuditEntries(ctx, cutoff)
}

// PublicTypes returns the configured audit types visible to anonymous
// listers, nil when none are configured.
func (s *AuditLogService) PublicTypes() []models.AuditType {
	if len(s.cfg.Server.PublicAuditEntries) == 0 {
		return nil
	}
	types := make([]models.AuditType, 0, len(s.cfg.Server.PublicAuditEntries))
	for _, t := range s.cfg.Server.PublicAuditEntries {
		types = append(types, models.AuditType(t))
	}
	return types
}
