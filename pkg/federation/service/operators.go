package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// OperatorService manages operator identity: CRUD, permission bits,
// API-key issuance, and the implicit master operator.
type OperatorService struct {
	store store.OperatorStore
	cache cache.Cache
	cfg   *config.Config
}

// NewOperatorService creates the operator manager.
func NewOperatorService(s store.OperatorStore, c cache.Cache, cfg *config.Config) *OperatorService {
	return &OperatorService{store: s, cache: c, cfg: cfg}
}

func (s *OperatorService) policy() config.CacheKindPolicy {
	return s.cfg.Cache.Operators
}

// CreateOperator registers a new operator with a fresh API key and all
// permission bits cleared.
func (s *OperatorService) CreateOperator(ctx context.Context, name string) (*models.Operator, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: operator name is required", models.ErrInvalidArgument)
	}
	if len(name) > models.MaxOperatorNameLength {
		return nil, fmt.Errorf("%w: operator name must be at most %d characters",
			models.ErrInvalidArgument, models.MaxOperatorNameLength)
	}
	if name == models.MasterOperatorName {
		return nil, fmt.Errorf("%w: operator name %q is reserved",
			models.ErrInvalidArgument, models.MasterOperatorName)
	}

	apiKey, err := models.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	op := &models.Operator{Name: name, APIKey: apiKey}
	if _, err := s.store.CreateOperator(ctx, op); err != nil {
		return nil, err
	}
	preCache(ctx, s.cache, s.cfg, s.policy(), keyOperator, op.UUID, operatorToFields(op))
	return op, nil
}

// GetOperator fetches an operator by UUID, cache-first.
func (s *OperatorService) GetOperator(ctx context.Context, uuid string) (*models.Operator, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed operator UUID", models.ErrInvalidArgument)
	}
	return cacheRead(ctx, s.cache, s.policy(), keyOperator, uuid,
		operatorFromFields, operatorToFields,
		func(ctx context.Context) (*models.Operator, error) {
			return s.store.GetOperator(ctx, uuid)
		})
}

// GetOperatorByAPIKey resolves an API key to its operator. The key-to-UUID
// alias is cached separately so the operator record itself is stored once.
func (s *OperatorService) GetOperatorByAPIKey(ctx context.Context, apiKey string) (*models.Operator, error) {
	if len(apiKey) != models.APIKeyLength {
		return nil, fmt.Errorf("%w: malformed API key", models.ErrInvalidArgument)
	}

	policy := s.policy()
	if policy.Enabled {
		fields, found, err := s.cache.Get(ctx, keyOperatorKey+apiKey)
		if err != nil {
			return nil, err
		}
		if found && fields["uuid"] != "" {
			op, err := s.GetOperator(ctx, fields["uuid"])
			// A stale alias (key rotated since caching) must not
			// authenticate the old key.
			if err == nil && op.APIKey == apiKey {
				return op, nil
			}
			_ = s.cache.Invalidate(ctx, keyOperatorKey+apiKey)
		}
	}

	op, err := s.store.GetOperatorByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if policy.Enabled {
		if err := s.cache.Set(ctx, keyOperatorKey+apiKey,
			map[string]string{"uuid": op.UUID}, policy.TTL); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// GetMasterOperator returns the operator behind the configured master API
// key, materializing the row on first use. The unique index on the
// reserved name makes concurrent materialization collapse to one row.
func (s *OperatorService) GetMasterOperator(ctx context.Context) (*models.Operator, error) {
	op, err := s.store.GetOperatorByName(ctx, models.MasterOperatorName)
	if err == nil {
		// Track a rotated master key from configuration.
		if op.APIKey != s.cfg.Server.APIKey {
			op.APIKey = s.cfg.Server.APIKey
			if err := s.store.UpdateOperator(ctx, op); err != nil {
				return nil, err
			}
			s.invalidate(ctx, op)
		}
		if s.cfg.Cache.SystemCachingEnabled && s.policy().Enabled {
			_ = s.cache.Set(ctx, keyOperator+op.UUID, operatorToFields(op), s.policy().TTL)
		}
		return op, nil
	}
	if !errors.Is(err, models.ErrOperatorNotFound) {
		return nil, err
	}

	op = &models.Operator{
		Name:            models.MasterOperatorName,
		APIKey:          s.cfg.Server.APIKey,
		ManageOperators: true,
		ManageBlacklist: true,
		IsClient:        true,
	}
	if _, err := s.store.CreateOperator(ctx, op); err != nil {
		if errors.Is(err, models.ErrDuplicateOperator) {
			return s.store.GetOperatorByName(ctx, models.MasterOperatorName)
		}
		return nil, err
	}
	return op, nil
}

// mutate applies a change to a stored operator and refreshes the cache.
// Every mutation path refuses the master operator.
func (s *OperatorService) mutate(ctx context.Context, uuid string, apply func(*models.Operator) error) (*models.Operator, error) {
	op, err := s.GetOperator(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if op.IsMaster() {
		return nil, models.ErrMasterImmutable
	}
	oldKey := op.APIKey
	if err := apply(op); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOperator(ctx, op); err != nil {
		return nil, err
	}
	s.invalidate(ctx, op)
	if oldKey != op.APIKey {
		_ = s.cache.Invalidate(ctx, keyOperatorKey+oldKey)
	}
	return op, nil
}

// SetManageOperators toggles the operator-management permission.
func (s *OperatorService) SetManageOperators(ctx context.Context, uuid string, allowed bool) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		op.ManageOperators = allowed
		return nil
	})
}

// SetManageBlacklist toggles the blacklist-management permission.
func (s *OperatorService) SetManageBlacklist(ctx context.Context, uuid string, allowed bool) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		op.ManageBlacklist = allowed
		return nil
	})
}

// SetClient toggles the entity-pushing client permission.
func (s *OperatorService) SetClient(ctx context.Context, uuid string, isClient bool) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		op.IsClient = isClient
		return nil
	})
}

// DisableOperator denies future authentication for the operator.
// Disabling an already-disabled operator is rejected.
func (s *OperatorService) DisableOperator(ctx context.Context, uuid string) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		if op.Disabled {
			return models.ErrAlreadyDisabled
		}
		op.Disabled = true
		return nil
	})
}

// EnableOperator re-admits a disabled operator.
func (s *OperatorService) EnableOperator(ctx context.Context, uuid string) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		if !op.Disabled {
			return models.ErrAlreadyEnabled
		}
		op.Disabled = false
		return nil
	})
}

// RefreshAPIKey replaces the operator's API key with a fresh one.
func (s *OperatorService) RefreshAPIKey(ctx context.Context, uuid string) (*models.Operator, error) {
	return s.mutate(ctx, uuid, func(op *models.Operator) error {
		key, err := models.GenerateAPIKey()
		if err != nil {
			return fmt.Errorf("failed to generate API key: %w", err)
		}
		op.APIKey = key
		return nil
	})
}

// DeleteOperator removes the operator. Evidence and blacklist records it
// authored cascade away; audit entries keep a nulled operator column.
func (s *OperatorService) DeleteOperator(ctx context.Context, uuid string) error {
	op, err := s.GetOperator(ctx, uuid)
	if err != nil {
		return err
	}
	if op.IsMaster() {
		return models.ErrMasterImmutable
	}
	if err := s.store.DeleteOperator(ctx, uuid); err != nil {
		return err
	}
	s.invalidate(ctx, op)
	_ = s.cache.Invalidate(ctx, keyOperatorKey+op.APIKey)
	return nil
}

// GetOperators lists one page of operators.
func (s *OperatorService) GetOperators(ctx context.Context, limit, page int) ([]*models.Operator, error) {
	limit, page = clampPage(limit, page, s.cfg.Server.PageLimits.Operators)
	return s.store.ListOperators(ctx, limit, page)
}

// CountRecords returns the total number of operators.
func (s *OperatorService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountOperators(ctx)
}

func (s *OperatorService) invalidate(ctx context.Context, op *models.Operator) {
	_ = s.cache.Invalidate(ctx, keyOperator+op.UUID)
}
