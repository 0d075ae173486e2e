package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// BlacklistService manages sanction records against entities.
type BlacklistService struct {
	store store.Store
	cache cache.Cache
	cfg   *config.Config
}

// NewBlacklistService creates the blacklist manager. It takes the full
// store because blacklisting validates the entity and evidence rows it
// references.
func NewBlacklistService(s store.Store, c cache.Cache, cfg *config.Config) *BlacklistService {
	return &BlacklistService{store: s, cache: c, cfg: cfg}
}

func (s *BlacklistService) policy() config.CacheKindPolicy {
	return s.cfg.Cache.Blacklist
}

// BlacklistEntity creates a sanction record. entityRef may be an entity
// UUID or SHA-256 hash; evidenceUUID may be empty. An expiry, when given,
// must lie at least the configured minimum duration in the future.
func (s *BlacklistService) BlacklistEntity(ctx context.Context, operatorUUID, entityRef string, typ models.BlacklistType, evidenceUUID string, expires *time.Time) (*models.Blacklist, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidBlacklistType, typ)
	}

	var entity *models.Entity
	var err error
	switch {
	case models.IsUUID(entityRef):
		entity, err = s.store.GetEntityByUUID(ctx, entityRef)
	case models.IsEntityHash(entityRef):
		entity, err = s.store.GetEntityByHash(ctx, entityRef)
	default:
		return nil, fmt.Errorf("%w: expected an entity UUID or SHA-256 hash", models.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}

	var evidence *string
	if evidenceUUID != "" {
		if !models.IsUUID(evidenceUUID) {
			return nil, fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
		}
		if _, err := s.store.GetEvidence(ctx, evidenceUUID); err != nil {
			return nil, err
		}
		evidence = &evidenceUUID
	}

	if expires != nil {
		min := time.Now().Add(s.cfg.Server.MinBlacklistTime)
		if expires.Before(min) {
			return nil, models.ErrExpiresTooSoon
		}
	}

	rec := &models.Blacklist{
		OperatorUUID: operatorUUID,
		EntityUUID:   entity.UUID,
		EvidenceUUID: evidence,
		Type:         typ,
		Expires:      expires,
	}
	if _, err := s.store.CreateBlacklist(ctx, rec); err != nil {
		return nil, err
	}
	preCache(ctx, s.cache, s.cfg, s.policy(), keyBlacklist, rec.UUID, blacklistToFields(rec))
	return rec, nil
}

// GetBlacklistRecord fetches one record, cache-first.
func (s *BlacklistService) GetBlacklistRecord(ctx context.Context, uuid string) (*models.Blacklist, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed blacklist UUID", models.ErrInvalidArgument)
	}
	return cacheRead(ctx, s.cache, s.policy(), keyBlacklist, uuid,
		blacklistFromFields, blacklistToFields,
		func(ctx context.Context) (*models.Blacklist, error) {
			return s.store.GetBlacklist(ctx, uuid)
		})
}

// LiftBlacklist marks a record lifted by the given operator. Lifting an
// already-lifted record is rejected; the first lifter wins.
func (s *BlacklistService) LiftBlacklist(ctx context.Context, uuid, byOperator string) (*models.Blacklist, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed blacklist UUID", models.ErrInvalidArgument)
	}
	if err := s.store.LiftBlacklist(ctx, uuid, byOperator); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, keyBlacklist+uuid)
	return s.store.GetBlacklist(ctx, uuid)
}

// AttachEvidence links an evidence record to a sanction that has none.
// The link is write-once.
func (s *BlacklistService) AttachEvidence(ctx context.Context, uuid, evidenceUUID string) (*models.Blacklist, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed blacklist UUID", models.ErrInvalidArgument)
	}
	if !models.IsUUID(evidenceUUID) {
		return nil, fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}
	if _, err := s.store.GetEvidence(ctx, evidenceUUID); err != nil {
		return nil, err
	}
	if err := s.store.AttachBlacklistEvidence(ctx, uuid, evidenceUUID); err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, keyBlacklist+uuid)
	return s.store.GetBlacklist(ctx, uuid)
}

// DeleteBlacklistRecord removes a record outright. Lifting is the normal
// way to retire a sanction; deletion erases it.
func (s *BlacklistService) DeleteBlacklistRecord(ctx context.Context, uuid string) error {
	if !models.IsUUID(uuid) {
		return fmt.Errorf("%w: malformed blacklist UUID", models.ErrInvalidArgument)
	}
	if err := s.store.DeleteBlacklist(ctx, uuid); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, keyBlacklist+uuid)
	return nil
}

// GetBlacklistRecords lists one page of records.
func (s *BlacklistService) GetBlacklistRecords(ctx context.Context, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Blacklist)
	return s.store.ListBlacklist(ctx, limit, page, includeLifted)
}

// GetBlacklistByEntity lists records against one entity.
func (s *BlacklistService) GetBlacklistByEntity(ctx context.Context, entityUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Blacklist)
	return s.store.ListBlacklistByEntity(ctx, entityUUID, limit, page, includeLifted)
}

// GetBlacklistByOperator lists records created by one operator.
func (s *BlacklistService) GetBlacklistByOperator(ctx context.Context, operatorUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Blacklist)
	return s.store.ListBlacklistByOperator(ctx, operatorUUID, limit, page, includeLifted)
}

// CountRecords returns the total number of blacklist records.
func (s *BlacklistService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountBlacklist(ctx)
}

// CleanRecords prunes lifted or expired records older than the given
// number of days.
func (s *BlacklistService) CleanRecords(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, fmt.Errorf("olderThanDays must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return s.store.CleanBlacklist(ctx, cutoff)
}
