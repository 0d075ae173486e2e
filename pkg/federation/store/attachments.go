package store

import (
	"context"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func (s *GORMStore) GetAttachment(ctx context.Context, uuid string) (*models.Attachment, error) {
	return getByField[models.Attachment](s.db, ctx, "uuid", uuid, models.ErrAttachmentNotFound)
}

func (s *GORMStore) CreateAttachment(ctx context.Context, att *models.Attachment) (string, error) {
	return createWithID(s.db, ctx, att, att.UUID,
		func(a *models.Attachment, id string) { a.UUID = id }, nil)
}

func (s *GORMStore) DeleteAttachment(ctx context.Context, uuid string) error {
	return deleteByField[models.Attachment](s.db, ctx, "uuid", uuid, models.ErrAttachmentNotFound)
}

func (s *GORMStore) ListAttachmentsByEvidence(ctx context.Context, evidenceUUID string) ([]*models.Attachment, error) {
	var results []*models.Attachment
	err := s.db.WithContext(ctx).
		Where("evidence = ?", evidenceUUID).
		Order("created ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GORMStore) CountAttachments(ctx context.Context) (int64, error) {
	return countRecords[models.Attachment](s.db, ctx)
}
