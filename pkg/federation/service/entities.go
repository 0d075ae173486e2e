package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/storage"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// EntityService manages the canonical entity registry.
type EntityService struct {
	store store.Store
	cache cache.Cache
	files *storage.Store
	cfg   *config.Config
}

// NewEntityService creates the entity manager. It takes the full store
// because the composite query endpoint joins entities with their
// blacklist and evidence records, and the file store so deleting an
// entity can clean up the attachment files its evidence cascades away.
func NewEntityService(s store.Store, c cache.Cache, files *storage.Store, cfg *config.Config) *EntityService {
	return &EntityService{store: s, cache: c, files: files, cfg: cfg}
}

func (s *EntityService) policy() config.CacheKindPolicy {
	return s.cfg.Cache.Entities
}

// RegisterEntity upserts an entity for (id, host). Registering the same
// pair twice returns the existing row; created reports whether a new row
// was inserted so callers can audit only the first push.
func (s *EntityService) RegisterEntity(ctx context.Context, id, host string) (*models.Entity, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: entity id is required", models.ErrInvalidArgument)
	}
	if len(id) > models.MaxEntityFieldLength {
		return nil, false, fmt.Errorf("%w: entity id must be at most %d characters",
			models.ErrInvalidArgument, models.MaxEntityFieldLength)
	}
	if len(host) > models.MaxEntityFieldLength {
		return nil, false, fmt.Errorf("%w: entity host must be at most %d characters",
			models.ErrInvalidArgument, models.MaxEntityFieldLength)
	}

	entity := &models.Entity{
		Hash: models.HashEntity(id, host),
		ID:   id,
		Host: host,
	}
	stored, created, err := s.store.UpsertEntity(ctx, entity)
	if err != nil {
		return nil, false, err
	}
	preCache(ctx, s.cache, s.cfg, s.policy(), keyEntity, stored.UUID, entityToFields(stored))
	return stored, created, nil
}

// GetEntityByUUID fetches an entity by UUID, cache-first.
func (s *EntityService) GetEntityByUUID(ctx context.Context, uuid string) (*models.Entity, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed entity UUID", models.ErrInvalidArgument)
	}
	return cacheRead(ctx, s.cache, s.policy(), keyEntity, uuid,
		entityFromFields, entityToFields,
		func(ctx context.Context) (*models.Entity, error) {
			return s.store.GetEntityByUUID(ctx, uuid)
		})
}

// GetEntityByHash fetches an entity by its SHA-256 hash. The hash-to-UUID
// alias is cached so the entity record is stored once, under its UUID.
func (s *EntityService) GetEntityByHash(ctx context.Context, hash string) (*models.Entity, error) {
	if !models.IsEntityHash(hash) {
		return nil, fmt.Errorf("%w: malformed entity hash", models.ErrInvalidArgument)
	}

	policy := s.policy()
	if policy.Enabled {
		fields, found, err := s.cache.Get(ctx, keyEntityHash+hash)
		if err != nil {
			return nil, err
		}
		if found && fields["uuid"] != "" {
			if entity, err := s.GetEntityByUUID(ctx, fields["uuid"]); err == nil {
				return entity, nil
			}
			_ = s.cache.Invalidate(ctx, keyEntityHash+hash)
		}
	}

	entity, err := s.store.GetEntityByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if policy.Enabled {
		if err := s.cache.Set(ctx, keyEntityHash+hash,
			map[string]string{"uuid": entity.UUID}, policy.TTL); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// ResolveEntity accepts either a UUID or a SHA-256 hash and returns the
// entity it identifies.
func (s *EntityService) ResolveEntity(ctx context.Context, ref string) (*models.Entity, error) {
	switch {
	case models.IsUUID(ref):
		return s.GetEntityByUUID(ctx, ref)
	case models.IsEntityHash(ref):
		return s.GetEntityByHash(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: expected an entity UUID or SHA-256 hash", models.ErrInvalidArgument)
	}
}

// EntityExists reports whether (id, host) is registered.
func (s *EntityService) EntityExists(ctx context.Context, id, host string) (bool, error) {
	_, err := s.GetEntityByHash(ctx, models.HashEntity(id, host))
	if err != nil {
		if errors.Is(err, models.ErrEntityNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EntityExistsByUUID reports whether the UUID is registered.
func (s *EntityService) EntityExistsByUUID(ctx context.Context, uuid string) (bool, error) {
	_, err := s.GetEntityByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, models.ErrEntityNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetEntities lists one page of the registry.
func (s *EntityService) GetEntities(ctx context.Context, limit, page int) ([]*models.Entity, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Entities)
	return s.store.ListEntities(ctx, limit, page)
}

// CountRecords returns the total number of entities.
func (s *EntityService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountEntities(ctx)
}

// DeleteEntity removes the entity; evidence and blacklist rows cascade.
// Attachment files belonging to cascaded evidence are unlinked best-effort
// before the row delete so the storage directory does not accumulate
// orphans.
func (s *EntityService) DeleteEntity(ctx context.Context, uuid string) error {
	entity, err := s.GetEntityByUUID(ctx, uuid)
	if err != nil {
		return err
	}

	if s.files != nil {
		evidence, err := s.store.ListEvidenceByEntity(ctx, uuid, s.cfg.Server.PageLimits.Evidence, 1, true)
		if err == nil {
			for _, ev := range evidence {
				atts, err := s.store.ListAttachmentsByEvidence(ctx, ev.UUID)
				if err != nil {
					continue
				}
				for _, att := range atts {
					_ = s.files.Delete(att.UUID)
				}
			}
		}
	}

	if err := s.store.DeleteEntity(ctx, uuid); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, keyEntity+entity.UUID, keyEntityHash+entity.Hash)
	return nil
}

// QueryEntity assembles the abuse dossier for an entity: the entity, its
// blacklist records, and its evidence. Lifted blacklist records and
// confidential evidence are filtered out unless included.
func (s *EntityService) QueryEntity(ctx context.Context, entity *models.Entity, includeConfidential, includeLifted bool) (*models.EntityQueryResult, error) {
	blacklist, err := s.store.ListBlacklistByEntity(ctx, entity.UUID,
		s.cfg.Server.PageLimits.Blacklist, 1, includeLifted)
	if err != nil {
		return nil, err
	}
	if !includeLifted {
		// The lifted filter is persisted state; expiry is a matter of time.
		active := blacklist[:0]
		now := time.Now()
		for _, rec := range blacklist {
			if rec.Active(now) {
				active = append(active, rec)
			}
		}
		blacklist = active
	}

	evidence, err := s.store.ListEvidenceByEntity(ctx, entity.UUID,
		s.cfg.Server.PageLimits.Evidence, 1, includeConfidential)
	if err != nil {
		return nil, err
	}

	return &models.EntityQueryResult{
		Entity:    entity,
		Blacklist: blacklist,
		Evidence:  evidence,
	}, nil
}
