package models

import "time"

// MaxAttachmentNameLength caps sanitized attachment filenames.
const MaxAttachmentNameLength = 255

// Attachment is file metadata tied to an evidence record. The bytes live
// at <storage_root>/<uuid> with no extension; row and file are created
// and deleted together by the attachment manager.
type Attachment struct {
	UUID         string    `gorm:"primaryKey;size:36" json:"uuid"`
	EvidenceUUID string    `gorm:"column:evidence;not null;size:36;index" json:"evidence"`
	FileMime     string    `gorm:"size:255" json:"file_mime"`
	FileName     string    `gorm:"size:255" json:"file_name"`
	FileSize     int64     `json:"file_size"`
	Created      time.Time `gorm:"autoCreateTime" json:"created"`

	EvidenceRef *Evidence `gorm:"foreignKey:EvidenceUUID;references:UUID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Attachment.
func (Attachment) TableName() string {
	return "attachments"
}
