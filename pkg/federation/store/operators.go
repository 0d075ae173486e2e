package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetOperator(ctx context.Context, uuid string) (*models.Operator, error) {
	return getByField[models.Operator](s.db, ctx, "uuid", uuid, models.ErrOperatorNotFound)
}

func (s *GORMStore) GetOperatorByAPIKey(ctx context.Context, apiKey string) (*models.Operator, error) {
	return getByField[models.Operator](s.db, ctx, "api_key", apiKey, models.ErrOperatorNotFound)
}

func (s *GORMStore) GetOperatorByName(ctx context.Context, name string) (*models.Operator, error) {
	return getByField[models.Operator](s.db, ctx, "name", name, models.ErrOperatorNotFound)
}

func (s *GORMStore) CreateOperator(ctx context.Context, op *models.Operator) (string, error) {
	return createWithID(s.db, ctx, op, op.UUID,
		func(o *models.Operator, id string) { o.UUID = id },
		models.ErrDuplicateOperator)
}

// UpdateOperator persists the mutable operator fields. The name and UUID
// are immutable after creation.
func (s *GORMStore) UpdateOperator(ctx context.Context, op *models.Operator) error {
	result := s.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("uuid = ?", op.UUID).
		Select("APIKey", "ManageOperators", "ManageBlacklist", "IsClient", "Disabled").
		Updates(op)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish no-op updates from missing rows.
		if _, err := s.GetOperator(ctx, op.UUID); err != nil {
			return err
		}
	}
	return nil
}

func (s *GORMStore) DeleteOperator(ctx context.Context, uuid string) error {
	return deleteByField[models.Operator](s.db, ctx, "uuid", uuid, models.ErrOperatorNotFound)
}

func (s *GORMStore) ListOperators(ctx context.Context, limit, page int) ([]*models.Operator, error) {
	return listPage[models.Operator](s.db, ctx, limit, page, orderByCreated)
}

func (s *GORMStore) CountOperators(ctx context.Context) (int64, error) {
	return countRecords[models.Operator](s.db, ctx)
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created ASC")
}
