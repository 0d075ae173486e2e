package models

import "time"

// AuditType classifies an audit log entry.
type AuditType string

// Audit entry types, one per state-changing action.
const (
	AuditOperatorCreated            AuditType = "OPERATOR_CREATED"
	AuditOperatorDeleted            AuditType = "OPERATOR_DELETED"
	AuditOperatorDisabled           AuditType = "OPERATOR_DISABLED"
	AuditOperatorEnabled            AuditType = "OPERATOR_ENABLED"
	AuditOperatorPermissionsChanged AuditType = "OPERATOR_PERMISSIONS_CHANGED"
	AuditAttachmentUploaded         AuditType = "ATTACHMENT_UPLOADED"
	AuditAttachmentDeleted          AuditType = "ATTACHMENT_DELETED"
	AuditEvidenceSubmitted          AuditType = "EVIDENCE_SUBMITTED"
	AuditEvidenceDeleted            AuditType = "EVIDENCE_DELETED"
	AuditEntityDeleted              AuditType = "ENTITY_DELETED"
	AuditEntityBlacklisted          AuditType = "ENTITY_BLACKLISTED"
	AuditEntityPushed               AuditType = "ENTITY_PUSHED"
	AuditBlacklistRecordDeleted     AuditType = "BLACKLIST_RECORD_DELETED"
	AuditBlacklistLifted            AuditType = "BLACKLIST_LIFTED"
	AuditBlacklistAttachmentAdded   AuditType = "BLACKLIST_ATTACHMENT_ADDED"
	AuditOther                      AuditType = "OTHER"
)

// IsValid checks if the type is a known audit type.
func (t AuditType) IsValid() bool {
	switch t {
	case AuditOperatorCreated, AuditOperatorDeleted, AuditOperatorDisabled,
		AuditOperatorEnabled, AuditOperatorPermissionsChanged,
		AuditAttachmentUploaded, AuditAttachmentDeleted,
		AuditEvidenceSubmitted, AuditEvidenceDeleted,
		AuditEntityDeleted, AuditEntityBlacklisted, AuditEntityPushed,
		AuditBlacklistRecordDeleted, AuditBlacklistLifted,
		AuditBlacklistAttachmentAdded, AuditOther:
		return true
	}
	return false
}

// AuditEntry is one append-only audit trail record. The operator and
// entity references are nulled, not cascaded, when their rows are deleted
// so history survives principal removal.
type AuditEntry struct {
	UUID         string    `gorm:"primaryKey;size:36" json:"uuid"`
	OperatorUUID *string   `gorm:"column:operator;size:36;index" json:"operator,omitempty"`
	EntityUUID   *string   `gorm:"column:entity;size:36;index" json:"entity,omitempty"`
	Type         AuditType `gorm:"not null;size:64;index" json:"type"`
	Message      string    `gorm:"type:text" json:"message"`
	Timestamp    time.Time `gorm:"autoCreateTime;index" json:"timestamp"`

	OperatorRef *Operator `gorm:"foreignKey:OperatorUUID;references:UUID;constraint:OnDelete:SET NULL" json:"-"`
	EntityRef   *Entity   `gorm:"foreignKey:EntityUUID;references:UUID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName returns the table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_log"
}
