package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/storage"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// EvidenceService manages per-entity evidence records.
type EvidenceService struct {
	store store.Store
	cache cache.Cache
	files *storage.Store
	cfg   *config.Config
}

// NewEvidenceService creates the evidence manager. The file store is used
// to clean up attachment files when an evidence record is deleted.
func NewEvidenceService(s store.Store, c cache.Cache, files *storage.Store, cfg *config.Config) *EvidenceService {
	return &EvidenceService{store: s, cache: c, files: files, cfg: cfg}
}

func (s *EvidenceService) policy() config.CacheKindPolicy {
	return s.cfg.Cache.Evidence
}

// AddEvidence records evidence against an entity. Both the entity and the
// submitting operator must exist.
func (s *EvidenceService) AddEvidence(ctx context.Context, entityUUID, operatorUUID, text, note, tag string, confidential bool) (*models.Evidence, error) {
	if !models.IsUUID(entityUUID) {
		return nil, fmt.Errorf("%w: malformed entity UUID", models.ErrInvalidArgument)
	}
	if !models.IsUUID(operatorUUID) {
		return nil, fmt.Errorf("%w: malformed operator UUID", models.ErrInvalidArgument)
	}
	if len(text) > models.MaxEvidenceTextLength {
		return nil, fmt.Errorf("%w: text content must be at most %d characters",
			models.ErrInvalidArgument, models.MaxEvidenceTextLength)
	}
	if len(note) > models.MaxEvidenceNoteLength {
		return nil, fmt.Errorf("%w: note must be at most %d characters",
			models.ErrInvalidArgument, models.MaxEvidenceNoteLength)
	}
	if len(tag) > models.MaxEvidenceTagLength {
		return nil, fmt.Errorf("%w: tag must be at most %d characters",
			models.ErrInvalidArgument, models.MaxEvidenceTagLength)
	}

	if _, err := s.store.GetEntityByUUID(ctx, entityUUID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetOperator(ctx, operatorUUID); err != nil {
		return nil, err
	}

	ev := &models.Evidence{
		EntityUUID:   entityUUID,
		OperatorUUID: operatorUUID,
		Confidential: confidential,
		TextContent:  text,
		Note:         note,
		Tag:          tag,
	}
	if _, err := s.store.CreateEvidence(ctx, ev); err != nil {
		return nil, err
	}
	preCache(ctx, s.cache, s.cfg, s.policy(), keyEvidence, ev.UUID, evidenceToFields(ev))
	return ev, nil
}

// GetEvidence fetches an evidence record, cache-first. Confidentiality
// gating is the caller's concern; the record is returned as stored.
func (s *EvidenceService) GetEvidence(ctx context.Context, uuid string) (*models.Evidence, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}
	return cacheRead(ctx, s.cache, s.policy(), keyEvidence, uuid,
		evidenceFromFields, evidenceToFields,
		func(ctx context.Context) (*models.Evidence, error) {
			return s.store.GetEvidence(ctx, uuid)
		})
}

// EvidenceExists reports whether the record exists.
func (s *EvidenceService) EvidenceExists(ctx context.Context, uuid string) (bool, error) {
	_, err := s.GetEvidence(ctx, uuid)
	if err != nil {
		if errors.Is(err, models.ErrEvidenceNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetEvidenceRecords lists one page of evidence.
func (s *EvidenceService) GetEvidenceRecords(ctx context.Context, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Evidence)
	return s.store.ListEvidence(ctx, limit, page, includeConfidential)
}

// GetEvidenceByEntity lists evidence for one entity.
func (s *EvidenceService) GetEvidenceByEntity(ctx context.Context, entityUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Evidence)
	return s.store.ListEvidenceByEntity(ctx, entityUUID, limit, page, includeConfidential)
}

// GetEvidenceByOperator lists evidence submitted by one operator.
func (s *EvidenceService) GetEvidenceByOperator(ctx context.Context, operatorUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Evidence)
	return s.store.ListEvidenceByOperator(ctx, operatorUUID, limit, page, includeConfidential)
}

// UpdateConfidentiality sets the confidential flag. Applying the same
// value twice is a no-op on state.
func (s *EvidenceService) UpdateConfidentiality(ctx context.Context, uuid string, confidential bool) error {
	if !models.IsUUID(uuid) {
		return fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}
	if err := s.store.UpdateEvidenceConfidentiality(ctx, uuid, confidential); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, keyEvidence+uuid)
	return nil
}

// DeleteEvidence removes the record. Attachment rows cascade via the
// schema; their files are unlinked best-effort first.
func (s *EvidenceService) DeleteEvidence(ctx context.Context, uuid string) error {
	if !models.IsUUID(uuid) {
		return fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}

	if s.files != nil {
		if atts, err := s.store.ListAttachmentsByEvidence(ctx, uuid); err == nil {
			for _, att := range atts {
				_ = s.files.Delete(att.UUID)
			}
		}
	}

	if err := s.store.DeleteEvidence(ctx, uuid); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, keyEvidence+uuid)
	return nil
}

// CountRecords returns the total number of evidence records.
func (s *EvidenceService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountEvidence(ctx)
}
