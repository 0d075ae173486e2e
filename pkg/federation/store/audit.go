package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetAuditEntry(ctx context.Context, uuid string) (*models.AuditEntry, error) {
	return getByField[models.AuditEntry](s.db, ctx, "uuid", uuid, models.ErrAuditEntryNotFound)
}

func (s *GORMStore) CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) (string, error) {
	return createWithID(s.db, ctx, entry, entry.UUID,
		func(e *models.AuditEntry, id string) { e.UUID = id }, nil)
}

// ListAuditEntries returns one page of the audit trail, newest first.
// A non-empty types filter restricts entries to those types; this is how
// the anonymous read path is limited to the configured public set.
func (s *GORMStore) ListAuditEntries(ctx context.Context, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	return listPage[models.AuditEntry](s.db, ctx, limit, page, orderByTimestamp, typeFilter(types))
}

func (s *GORMStore) ListAuditByEntity(ctx context.Context, entityUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	return listPage[models.AuditEntry](s.db, ctx, limit, page, orderByTimestamp,
		typeFilter(types), fieldFilter("entity", entityUUID))
}

func (s *GORMStore) ListAuditByOperator(ctx context.Context, operatorUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error) {
	return listPage[models.AuditEntry](s.db, ctx, limit, page, orderByTimestamp,
		typeFilter(types), fieldFilter("operator", operatorUUID))
}

func (s *GORMStore) CountAuditEntries(ctx context.Context) (int64, error) {
	return countRecords[models.AuditEntry](s.db, ctx)
}

// CleanAuditEntries prunes entries older than the cutoff. Returns the
// number of rows removed.
func (s *GORMStore) CleanAuditEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&models.AuditEntry{})
	return result.RowsAffected, result.Error
}

func orderByTimestamp(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp DESC")
}

func typeFilter(types []models.AuditType) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(types) == 0 {
			return db
		}
		return db.Where("type IN ?", types)
	}
}
