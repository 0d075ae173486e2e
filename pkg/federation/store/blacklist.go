package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetBlacklist(ctx context.Context, uuid string) (*models.Blacklist, error) {
	return getByField[models.Blacklist](s.db, ctx, "uuid", uuid, models.ErrBlacklistNotFound)
}

func (s *GORMStore) CreateBlacklist(ctx context.Context, rec *models.Blacklist) (string, error) {
	return createWithID(s.db, ctx, rec, rec.UUID,
		func(b *models.Blacklist, id string) { b.UUID = id }, nil)
}

func (s *GORMStore) DeleteBlacklist(ctx context.Context, uuid string) error {
	return deleteByField[models.Blacklist](s.db, ctx, "uuid", uuid, models.ErrBlacklistNotFound)
}

// LiftBlacklist marks the record lifted by the given operator. The
// conditional UPDATE rejects a second lift without needing a row lock:
// only one writer can transition lifted from false to true.
func (s *GORMStore) LiftBlacklist(ctx context.Context, uuid, byOperator string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Blacklist{}).
		Where("uuid = ? AND lifted = ?", uuid, false).
		Updates(map[string]any{
			"lifted":    true,
			"lifted_by": byOperator,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetBlacklist(ctx, uuid); err != nil {
			return err
		}
		return models.ErrAlreadyLifted
	}
	return nil
}

// AttachBlacklistEvidence links evidence to a blacklist record that has
// none yet. Same conditional-write pattern as LiftBlacklist.
func (s *GORMStore) AttachBlacklistEvidence(ctx context.Context, uuid, evidenceUUID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Blacklist{}).
		Where("uuid = ? AND evidence IS NULL", uuid).
		Update("evidence", evidenceUUID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetBlacklist(ctx, uuid); err != nil {
			return err
		}
		return models.ErrEvidenceAlreadySet
	}
	return nil
}

func (s *GORMStore) ListBlacklist(ctx context.Context, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	return listPage[models.Blacklist](s.db, ctx, limit, page, orderByCreated, liftedFilter(includeLifted))
}

func (s *GORMStore) ListBlacklistByEntity(ctx context.Context, entityUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	return listPage[models.Blacklist](s.db, ctx, limit, page, orderByCreated,
		liftedFilter(includeLifted), fieldFilter("entity", entityUUID))
}

func (s *GORMStore) ListBlacklistByOperator(ctx context.Context, operatorUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	return listPage[models.Blacklist](s.db, ctx, limit, page, orderByCreated,
		liftedFilter(includeLifted), fieldFilter("operator", operatorUUID))
}

func (s *GORMStore) CountBlacklist(ctx context.Context) (int64, error) {
	return countRecords[models.Blacklist](s.db, ctx)
}

// CleanBlacklist deletes records that are no longer in force (lifted, or
// expired) and were created before the cutoff. Returns the number of rows
// removed.
func (s *GORMStore) CleanBlacklist(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created < ? AND (lifted = ? OR (expires IS NOT NULL AND expires < ?))",
			cutoff, true, time.Now()).
		Delete(&models.Blacklist{})
	return result.RowsAffected, result.Error
}

func liftedFilter(includeLifted bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if includeLifted {
			return db
		}
		return db.Where("lifted = ?", false)
	}
}
