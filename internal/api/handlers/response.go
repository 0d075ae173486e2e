package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// successEnvelope is the wire shape of every successful response.
type successEnvelope struct {
	Success bool `json:"success"`
	Results any  `json:"results"`
}

// errorEnvelope is the wire shape of every failed response. Code repeats
// the HTTP status so clients reading only the body see it too.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteResults writes a success envelope with HTTP 200.
func WriteResults(w http.ResponseWriter, results any) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Results: results})
}

// WriteCreated writes a success envelope with HTTP 201.
func WriteCreated(w http.ResponseWriter, results any) {
	writeJSON(w, http.StatusCreated, successEnvelope{Success: true, Results: results})
}

// WriteError writes an error envelope. The HTTP status equals code.
func WriteError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorEnvelope{Success: false, Code: code, Message: message})
}

// BadRequest writes a 400 error envelope.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 error envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 error envelope.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// NotFound writes a 404 error envelope.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// InternalServerError writes a 500 error envelope.
func InternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// ServiceError translates a service-layer error into the wire taxonomy.
// Unknown errors become an opaque 500; SQL text and stack traces never
// reach the client.
func ServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrInvalidBlacklistType),
		errors.Is(err, models.ErrAlreadyLifted),
		errors.Is(err, models.ErrAlreadyDisabled),
		errors.Is(err, models.ErrAlreadyEnabled),
		errors.Is(err, models.ErrEvidenceAlreadySet),
		errors.Is(err, models.ErrDuplicateOperator):
		BadRequest(w, capitalize(err.Error()))
	case errors.Is(err, models.ErrOperatorNotFound),
		errors.Is(err, models.ErrEntityNotFound),
		errors.Is(err, models.ErrEvidenceNotFound),
		errors.Is(err, models.ErrAttachmentNotFound),
		errors.Is(err, models.ErrBlacklistNotFound),
		errors.Is(err, models.ErrAuditEntryNotFound):
		NotFound(w, capitalize(err.Error()))
	case errors.Is(err, models.ErrMasterImmutable),
		errors.Is(err, models.ErrOperatorDisabled):
		Forbidden(w, capitalize(err.Error()))
	case errors.Is(err, service.ErrStorageFull):
		InternalServerError(w, "Attachment storage is full")
	default:
		logger.Error("request failed", "error", err)
		InternalServerError(w, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
