package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxEntityFieldLength bounds both the id and host fields of an entity.
const MaxEntityFieldLength = 255

// Entity is a federated subject: an identifier plus an optional host,
// canonicalized to "id@host" (or just "id") for hashing. The SHA-256 of
// the canonical form is stored and uniquely indexed so the same subject
// registered twice resolves to the same row.
type Entity struct {
	UUID    string    `gorm:"primaryKey;size:36" json:"uuid"`
	Hash    string    `gorm:"uniqueIndex;not null;size:64" json:"hash"`
	ID      string    `gorm:"column:id;not null;size:255" json:"id"`
	Host    string    `gorm:"size:255" json:"host,omitempty"`
	Created time.Time `gorm:"autoCreateTime" json:"created"`
}

// TableName returns the table name for Entity.
func (Entity) TableName() string {
	return "entities"
}

// Canonical returns the canonical form used for hashing: "id@host" when a
// host is present, otherwise just the id.
func (e *Entity) Canonical() string {
	return CanonicalEntity(e.ID, e.Host)
}

// CanonicalEntity builds the canonical form for an (id, host) pair.
func CanonicalEntity(id, host string) string {
	if host != "" {
		return id + "@" + host
	}
	return id
}

// HashEntity returns the lowercase hex SHA-256 of the canonical form.
func HashEntity(id, host string) string {
	sum := sha256.Sum256([]byte(CanonicalEntity(id, host)))
	return hex.EncodeToString(sum[:])
}

// EntityQueryResult is the composite dossier returned by the entity query
// endpoint: the entity itself plus its blacklist and evidence records,
// pre-filtered according to the caller's visibility.
type EntityQueryResult struct {
	Entity    *Entity      `json:"entity"`
	Blacklist []*Blacklist `json:"blacklist"`
	Evidence  []*Evidence  `json:"evidence"`
}
