// Package models defines the federation data model: operators, entities,
// evidence, attachments, blacklist records and the audit log, together
// with their GORM mappings and domain errors.
package models

import "regexp"

// AllModels returns every model for schema migration, ordered so that
// referenced tables are created before their dependents.
func AllModels() []any {
	return []any{
		&Operator{},
		&Entity{},
		&Evidence{},
		&Attachment{},
		&Blacklist{},
		&AuditEntry{},
	}
}

var (
	uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hashRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// IsUUID reports whether s is a canonical 36-character RFC 4122 UUID.
func IsUUID(s string) bool {
	return uuidRe.MatchString(s)
}

// IsEntityHash reports whether s is a 64-character hex SHA-256 digest.
func IsEntityHash(s string) bool {
	return hashRe.MatchString(s)
}
