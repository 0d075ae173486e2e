package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// EvidenceHandler handles the evidence routes.
type EvidenceHandler struct {
	evidence *service.EvidenceService
	entities *service.EntityService
	auditlog *service.AuditLogService
	cfg      *config.Config
}

// NewEvidenceHandler creates the evidence handler.
func NewEvidenceHandler(ev *service.EvidenceService, ent *service.EntityService, audit *service.AuditLogService, cfg *config.Config) *EvidenceHandler {
	return &EvidenceHandler{evidence: ev, entities: ent, auditlog: audit, cfg: cfg}
}

// Create handles POST /evidence. The entity parameter accepts a UUID or
// a SHA-256 hash.
func (h *EvidenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	entityRef := params.Get("entity")
	if entityRef == "" {
		entityRef = params.Get("entity_uuid")
	}
	entity, err := h.entities.ResolveEntity(r.Context(), entityRef)
	if err != nil {
		ServiceError(w, err)
		return
	}

	ev, err := h.evidence.AddEvidence(r.Context(), entity.UUID, caller.UUID,
		params.Get("text_content"), params.Get("note"), params.Get("tag"),
		params.Bool("confidential"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditEvidenceSubmitted,
		fmt.Sprintf("Evidence submitted against %q by %q",
			models.CanonicalEntity(entity.ID, entity.Host), caller.Name),
		&caller.UUID, &entity.UUID)
	WriteCreated(w, ev.UUID)
}

// List handles GET /evidence.
func (h *EvidenceHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicEvidence)
	if !ok {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	limit, page := params.Pagination()

	includeConfidential := caller != nil && caller.ManageBlacklist
	records, err := h.evidence.GetEvidenceRecords(r.Context(), limit, page, includeConfidential)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}

// Get handles GET /evidence/{uuid}. Confidential records require
// blacklist management rights: 401 for anonymous callers, 403 for
// authenticated ones without the bit.
func (h *EvidenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicEvidence)
	if !ok {
		return
	}

	ev, err := h.evidence.GetEvidence(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	if ev.Confidential {
		if caller == nil {
			Unauthorized(w, "Authentication required")
			return
		}
		if !caller.ManageBlacklist {
			Forbidden(w, "Insufficient permissions")
			return
		}
	}
	WriteResults(w, ev)
}

// Delete handles DELETE /evidence/{uuid}.
func (h *EvidenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	uuid := chi.URLParam(r, "uuid")

	ev, err := h.evidence.GetEvidence(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if err := h.evidence.DeleteEvidence(r.Context(), uuid); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditEvidenceDeleted,
		fmt.Sprintf("Evidence %s deleted by %q", ev.UUID, caller.Name),
		&caller.UUID, &ev.EntityUUID)
	WriteResults(w, ev.UUID)
}

// UpdateConfidentiality handles POST /evidence/{uuid}/update_confidentiality.
func (h *EvidenceHandler) UpdateConfidentiality(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if !params.Has("confidential") {
		BadRequest(w, "The confidential parameter is required")
		return
	}

	uuid := chi.URLParam(r, "uuid")
	confidential := params.Bool("confidential")
	if err := h.evidence.UpdateConfidentiality(r.Context(), uuid, confidential); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditOther,
		fmt.Sprintf("Confidentiality of evidence %s set to %t by %q",
			uuid, confidential, caller.Name),
		&caller.UUID, nil)
	WriteResults(w, uuid)
}
