package commands

import (
	"context"
	"fmt"

	"github.com/abuseshield/federation/internal/api"
	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/service"
	"github.com/abuseshield/federation/pkg/federation/storage"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// backend bundles the wired infrastructure and services a command needs.
type backend struct {
	cfg      *config.Config
	store    store.Store
	cache    cache.Cache
	files    *storage.Store
	services api.Services
}

// openBackend connects the store, cache and file storage and constructs
// the domain services on top.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var c cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled {
		rc, err := cache.New(ctx, &cfg.Cache)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to cache: %w", err)
		}
		c = rc
	}

	files, err := storage.New(cfg.Server.StoragePath, cfg.Server.MaxStorageFiles)
	if err != nil {
		c.Close()
		st.Close()
		return nil, err
	}

	b := &backend{cfg: cfg, store: st, cache: c, files: files}
	b.services = api.Services{
		Operators:   service.NewOperatorService(st, c, cfg),
		Entities:    service.NewEntityService(st, c, files, cfg),
		Evidence:    service.NewEvidenceService(st, c, files, cfg),
		Attachments: service.NewAttachmentService(st, files, cfg),
		Blacklist:   service.NewBlacklistService(st, c, cfg),
		AuditLog:    service.NewAuditLogService(st, cfg),
	}
	return b, nil
}

// Close releases the backend connections.
func (b *backend) Close() {
	if err := b.cache.Close(); err != nil {
		logger.Warn("failed to close cache", "error", err)
	}
	if err := b.store.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}
