package models

import "time"

// BlacklistType classifies the reason an entity was blacklisted.
type BlacklistType string

// Supported blacklist reasons.
const (
	BlacklistSpam           BlacklistType = "SPAM"
	BlacklistScam           BlacklistType = "SCAM"
	BlacklistServiceAbuse   BlacklistType = "SERVICE_ABUSE"
	BlacklistIllegalContent BlacklistType = "ILLEGAL_CONTENT"
	BlacklistMalware        BlacklistType = "MALWARE"
	BlacklistPhishing       BlacklistType = "PHISHING"
	BlacklistCSAM           BlacklistType = "CSAM"
	BlacklistOther          BlacklistType = "OTHER"
)

// IsValid checks if the type is a known blacklist reason.
func (t BlacklistType) IsValid() bool {
	switch t {
	case BlacklistSpam, BlacklistScam, BlacklistServiceAbuse,
		BlacklistIllegalContent, BlacklistMalware, BlacklistPhishing,
		BlacklistCSAM, BlacklistOther:
		return true
	}
	return false
}

// Blacklist is a typed, optionally expiring, liftable sanction against an
// entity. When lifted, LiftedBy records the operator who lifted it.
// Deleting the creating operator, the entity, or the linked evidence
// cascades to the record; deleting the lifting operator nulls LiftedBy.
type Blacklist struct {
	UUID         string        `gorm:"primaryKey;size:36" json:"uuid"`
	OperatorUUID string        `gorm:"column:operator;not null;size:36;index" json:"operator"`
	EntityUUID   string        `gorm:"column:entity;not null;size:36;index" json:"entity"`
	EvidenceUUID *string       `gorm:"column:evidence;size:36" json:"evidence,omitempty"`
	Type         BlacklistType `gorm:"not null;size:32" json:"type"`
	Lifted       bool          `gorm:"default:false" json:"lifted"`
	LiftedBy     *string       `gorm:"size:36" json:"lifted_by,omitempty"`
	Expires      *time.Time    `json:"expires,omitempty"`
	Created      time.Time     `gorm:"autoCreateTime" json:"created"`

	OperatorRef *Operator `gorm:"foreignKey:OperatorUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
	EntityRef   *Entity   `gorm:"foreignKey:EntityUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
	EvidenceRef *Evidence `gorm:"foreignKey:EvidenceUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
	LiftedByRef *Operator `gorm:"foreignKey:LiftedBy;references:UUID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName returns the table name for Blacklist.
func (Blacklist) TableName() string {
	return "blacklist"
}

// Active reports whether the record is in force at the given time:
// not lifted and not past its expiry.
func (b *Blacklist) Active(now time.Time) bool {
	if b.Lifted {
		return false
	}
	if b.Expires != nil && b.Expires.Before(now) {
		return false
	}
	return true
}
