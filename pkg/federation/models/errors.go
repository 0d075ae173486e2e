package models

import "errors"

// Common errors for federation domain operations.
var (
	// ErrInvalidArgument marks malformed caller input. Services wrap it
	// with a description; handlers map it to 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// Operator errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrDuplicateOperator = errors.New("operator already exists")
	ErrOperatorDisabled  = errors.New("operator is disabled")
	ErrMasterImmutable   = errors.New("master operator cannot be modified")
	ErrAlreadyDisabled   = errors.New("operator is already disabled")
	ErrAlreadyEnabled    = errors.New("operator is already enabled")

	// Entity errors
	ErrEntityNotFound = errors.New("entity not found")

	// Evidence errors
	ErrEvidenceNotFound = errors.New("evidence not found")

	// Attachment errors
	ErrAttachmentNotFound = errors.New("attachment not found")

	// Blacklist errors
	ErrBlacklistNotFound    = errors.New("blacklist record not found")
	ErrAlreadyLifted        = errors.New("blacklist record is already lifted")
	ErrEvidenceAlreadySet   = errors.New("blacklist record already has evidence attached")
	ErrExpiresTooSoon       = errors.New("expiration time is below the minimum blacklist duration")
	ErrInvalidBlacklistType = errors.New("invalid blacklist type")

	// Audit errors
	ErrAuditEntryNotFound = errors.New("audit entry not found")
)
