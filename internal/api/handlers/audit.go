package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// AuditHandler handles the audit trail read routes.
type AuditHandler struct {
	auditlog *service.AuditLogService
	cfg      *config.Config
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(audit *service.AuditLogService, cfg *config.Config) *AuditHandler {
	return &AuditHandler{auditlog: audit, cfg: cfg}
}

// List handles GET /audit. Authenticated callers may filter with a
// comma-separated `types` parameter; anonymous callers are restricted to
// the configured public entry types regardless of the filter.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicAuditLogs)
	if !ok {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	limit, page := params.Pagination()

	var types []models.AuditType
	if raw := params.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			typ := models.AuditType(strings.TrimSpace(t))
			if !typ.IsValid() {
				BadRequest(w, "Unknown audit entry type: "+string(typ))
				return
			}
			types = append(types, typ)
		}
	}
	if caller == nil {
		types = intersectTypes(types, h.auditlog.PublicTypes())
		if len(types) == 0 {
			WriteResults(w, []*models.AuditEntry{})
			return
		}
	}

	entries, err := h.auditlog.GetEntries(r.Context(), limit, page, types)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, entries)
}

// Get handles GET /audit/{uuid}. Anonymous callers only see entries of
// public types.
func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicAuditLogs)
	if !ok {
		return
	}

	entry, err := h.auditlog.GetEntry(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	if caller == nil && !containsType(h.auditlog.PublicTypes(), entry.Type) {
		NotFound(w, "Audit entry not found")
		return
	}
	WriteResults(w, entry)
}

// intersectTypes restricts filter to allowed. An empty filter means "all
// of allowed".
func intersectTypes(filter, allowed []models.AuditType) []models.AuditType {
	if len(filter) == 0 {
		return allowed
	}
	var out []models.AuditType
	for _, t := range filter {
		if containsType(allowed, t) {
			out = append(out, t)
		}
	}
	return out
}

func containsType(types []models.AuditType, t models.AuditType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
