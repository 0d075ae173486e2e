package store

import (
	"context"
	"time"

	"github.com/abuseshield/federation/pkg/federation/models"
)

// Store is the persistence contract consumed by the federation services.
// GORMStore is the production implementation; tests construct it over an
// in-memory SQLite database.
type Store interface {
	OperatorStore
	EntityStore
	EvidenceStore
	AttachmentStore
	BlacklistStore
	AuditStore

	Close() error
}

// OperatorStore persists operators.
type OperatorStore interface {
	GetOperator(ctx context.Context, uuid string) (*models.Operator, error)
	GetOperatorByAPIKey(ctx context.Context, apiKey string) (*models.Operator, error)
	GetOperatorByName(ctx context.Context, name string) (*models.Operator, error)
	CreateOperator(ctx context.Context, op *models.Operator) (string, error)
	UpdateOperator(ctx context.Context, op *models.Operator) error
	DeleteOperator(ctx context.Context, uuid string) error
	ListOperators(ctx context.Context, limit, page int) ([]*models.Operator, error)
	CountOperators(ctx context.Context) (int64, error)
}

// EntityStore persists entities.
type EntityStore interface {
	GetEntityByUUID(ctx context.Context, uuid string) (*models.Entity, error)
	GetEntityByHash(ctx context.Context, hash string) (*models.Entity, error)
	UpsertEntity(ctx context.Context, entity *models.Entity) (*models.Entity, bool, error)
	DeleteEntity(ctx context.Context, uuid string) error
	ListEntities(ctx context.Context, limit, page int) ([]*models.Entity, error)
	CountEntities(ctx context.Context) (int64, error)
}

// EvidenceStore persists evidence records.
type EvidenceStore interface {
	GetEvidence(ctx context.Context, uuid string) (*models.Evidence, error)
	CreateEvidence(ctx context.Context, ev *models.Evidence) (string, error)
	DeleteEvidence(ctx context.Context, uuid string) error
	UpdateEvidenceConfidentiality(ctx context.Context, uuid string, confidential bool) error
	ListEvidence(ctx context.Context, limit, page int, includeConfidential bool) ([]*models.Evidence, error)
	ListEvidenceByEntity(ctx context.Context, entityUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error)
	ListEvidenceByOperator(ctx context.Context, operatorUUID string, limit, page int, includeConfidential bool) ([]*models.Evidence, error)
	CountEvidence(ctx context.Context) (int64, error)
}

// AttachmentStore persists attachment metadata.
type AttachmentStore interface {
	GetAttachment(ctx context.Context, uuid string) (*models.Attachment, error)
	CreateAttachment(ctx context.Context, att *models.Attachment) (string, error)
	DeleteAttachment(ctx context.Context, uuid string) error
	ListAttachmentsByEvidence(ctx context.Context, evidenceUUID string) ([]*models.Attachment, error)
	CountAttachments(ctx context.Context) (int64, error)
}

// BlacklistStore persists blacklist records.
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, uuid string) (*models.Blacklist, error)
	CreateBlacklist(ctx context.Context, rec *models.Blacklist) (string, error)
	DeleteBlacklist(ctx context.Context, uuid string) error
	LiftBlacklist(ctx context.Context, uuid, byOperator string) error
	AttachBlacklistEvidence(ctx context.Context, uuid, evidenceUUID string) error
	ListBlacklist(ctx context.Context, limit, page int, includeLifted bool) ([]*models.Blacklist, error)
	ListBlacklistByEntity(ctx context.Context, entityUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error)
	ListBlacklistByOperator(ctx context.Context, operatorUUID string, limit, page int, includeLifted bool) ([]*models.Blacklist, error)
	CountBlacklist(ctx context.Context) (int64, error)
	CleanBlacklist(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore persists the audit trail.
type AuditStore interface {
	GetAuditEntry(ctx context.Context, uuid string) (*models.AuditEntry, error)
	CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) (string, error)
	ListAuditEntries(ctx context.Context, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error)
	ListAuditByEntity(ctx context.Context, entityUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error)
	ListAuditByOperator(ctx context.Context, operatorUUID string, limit, page int, types []models.AuditType) ([]*models.AuditEntry, error)
	CountAuditEntries(ctx context.Context) (int64, error)
	CleanAuditEntries(ctx context.Context, cutoff time.Time) (int64, error)
}
