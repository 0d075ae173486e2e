package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetEvidence(ctx context.Context, uuid string) (*models.Evidence, error) {
	return getByField[models.Evidence](s.db, ctx, "uuid", uuid, models.ErrEvidenceNotFound)
}

func (s *GORMStore) CreateEvidence(ctx context.Context, ev *models.Evidence) (string, error) {
	return createWithID(s.db, ctx, ev, ev.UUID,
		func(e *models.Evidence, id string) { e.UUID = id }, nil)
}

func (s *GORMStore) DeleteEvidence(ctx context.Context, uuid string) error {
	return deleteByField[models.Evidence](s.db, ctx, "uuid", uuid, models.ErrEvidenceNotFound)
}

// UpdateEvidenceConfidentiality flips the confidential flag. Setting the
// same value twice is a no-op on state.
func (s *GORMStore) UpdateEvidenceConfidentiality(ctx context.Context, uuid string, confidential bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.Evidence{}).
		Where("uuid = ?", uuid).
		Update("confidential", confidential)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetEvidence(ctx, uuid); err != nil {
			return err
		}
	}
	return nil
}

func (s *GORMStore) ListEvidence(ctx context.Context, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	return listPage[models.Evidence](s.db, ctx, limit, page, orderByCreated, confidentialFilter(includeConfidential))
}

func (s *GORMStore) ListEvidenceByEntity(ctx context.Context, entityUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	return listPage[models.Evidence](s.db, ctx, limit, page, orderByCreated,
		confidentialFilter(includeConfidential), fieldFilter("entity", entityUUID))
}

func (s *GORMStore) ListEvidenceByOperator(ctx context.Context, operatorUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	return listPage[models.Evidence](s.db, ctx, limit, page, orderByCreated,
		confidentialFilter(includeConfidential), fieldFilter("operator", operatorUUID))
}

func (s *GORMStore) CountEvidence(ctx context.Context) (int64, error) {
	return countRecords[models.Evidence](s.db, ctx)
}

func confidentialFilter(includeConfidential bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if includeConfidential {
			return db
		}
		return db.Where("confidential = ?", false)
	}
}

func fieldFilter(field string, value any) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(field+" = ?", value)
	}
}
