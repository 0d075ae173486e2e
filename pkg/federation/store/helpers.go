package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generic GORM helpers shared by the per-kind store files. They operate on
// the raw *gorm.DB and handle the standard concerns: context propagation,
// not-found conversion, unique constraint detection, and pagination.

// getByField retrieves a single record of type T matching field=value,
// converting gorm.ErrRecordNotFound to notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// createWithID generates a UUID for the entity if it has none, then
// inserts it. Unique violations are converted to dupErr.
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, currentID string, idSetter func(*T, string), dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if dupErr != nil && isUniqueConstraintError(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}

// deleteByField deletes records of type T matching field=value, returning
// notFoundErr if no rows were affected.
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Where(field+" = ?", value).Delete(&zero)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// listPage retrieves one page of records of type T. page is 1-based; the
// caller is responsible for clamping limit and page to valid ranges.
// scopes customize the query (filters, ordering) before pagination.
func listPage[T any](db *gorm.DB, ctx context.Context, limit, page int, scopes ...func(*gorm.DB) *gorm.DB) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx)
	for _, scope := range scopes {
		q = scope(q)
	}
	offset := (page - 1) * limit
	if err := q.Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// countRecords counts records of type T, optionally filtered by scopes.
func countRecords[T any](db *gorm.DB, ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var zero T
	var count int64
	q := db.WithContext(ctx).Model(&zero)
	for _, scope := range scopes {
		q = scope(q)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
