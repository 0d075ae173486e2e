package models

import "time"

// Field length caps for evidence records.
const (
	MaxEvidenceTextLength = 65535
	MaxEvidenceNoteLength = 65535
	MaxEvidenceTagLength  = 32
)

// Evidence is a textual record tied to an entity, submitted by an
// operator. Confidential evidence is hidden from callers without
// blacklist management rights. Deleting the entity or the submitting
// operator cascades to the evidence.
type Evidence struct {
	UUID         string    `gorm:"primaryKey;size:36" json:"uuid"`
	EntityUUID   string    `gorm:"column:entity;not null;size:36;index" json:"entity"`
	OperatorUUID string    `gorm:"column:operator;not null;size:36;index" json:"operator"`
	Confidential bool      `gorm:"default:false" json:"confidential"`
	TextContent  string    `gorm:"type:text" json:"text_content"`
	Tag          string    `gorm:"size:32" json:"tag,omitempty"`
	Note         string    `gorm:"type:text" json:"note,omitempty"`
	Created      time.Time `gorm:"autoCreateTime" json:"created"`

	EntityRef   *Entity   `gorm:"foreignKey:EntityUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
	OperatorRef *Operator `gorm:"foreignKey:OperatorUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Evidence.
func (Evidence) TableName() string {
	return "evidence"
}
