package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetEntityByUUID(ctx context.Context, uuid string) (*models.Entity, error) {
	return getByField[models.Entity](s.db, ctx, "uuid", uuid, models.ErrEntityNotFound)
}

func (s *GORMStore) GetEntityByHash(ctx context.Context, hash string) (*models.Entity, error) {
	return getByField[models.Entity](s.db, ctx, "hash", hash, models.ErrEntityNotFound)
}

// UpsertEntity inserts the entity unless a row with the same hash already
// exists. Returns the canonical row and whether a new one was created.
// The unique index on hash makes concurrent registration of the same
// (id, host) collapse to a single row.
func (s *GORMStore) UpsertEntity(ctx context.Context, entity *models.Entity) (*models.Entity, bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(entity)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0
	if created {
		return entity, true, nil
	}
	existing, err := s.GetEntityByHash(ctx, entity.Hash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteEntity removes the entity. Evidence and blacklist rows cascade
// via the schema's ON DELETE CASCADE; audit entries keep their entity
// column nulled by ON DELETE SET NULL.
func (s *GORMStore) DeleteEntity(ctx context.Context, uuid string) error {
	return deleteByField[models.Entity](s.db, ctx, "uuid", uuid, models.ErrEntityNotFound)
}

func (s *GORMStore) ListEntities(ctx context.Context, limit, page int) ([]*models.Entity, error) {
	return listPage[models.Entity](s.db, ctx, limit, page, orderByCreated)
}

func (s *GORMStore) CountEntities(ctx context.Context) (int64, error) {
	return countRecords[models.Entity](s.db, ctx)
}
