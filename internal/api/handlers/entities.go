package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// EntityHandler handles the entity registry routes. The {id} path segment
// accepts either an entity UUID or its SHA-256 hash.
type EntityHandler struct {
	entities  *service.EntityService
	blacklist *service.BlacklistService
	evidence  *service.EvidenceService
	auditlog  *service.AuditLogService
	cfg       *config.Config
}

// NewEntityHandler creates the entity handler.
func NewEntityHandler(ent *service.EntityService, bl *service.BlacklistService, ev *service.EvidenceService, audit *service.AuditLogService, cfg *config.Config) *EntityHandler {
	return &EntityHandler{entities: ent, blacklist: bl, evidence: ev, auditlog: audit, cfg: cfg}
}

// Push handles POST /entities. Pushing an already-registered (id, host)
// pair returns the existing UUID and audits nothing.
func (h *EntityHandler) Push(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, isClient)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	id := params.Get("id")
	host := params.Get("host")
	if host == "" {
		// Older clients send the host as `domain`.
		host = params.Get("domain")
	}

	entity, created, err := h.entities.RegisterEntity(r.Context(), id, host)
	if err != nil {
		ServiceError(w, err)
		return
	}

	if created {
		h.auditlog.CreateEntry(r.Context(), models.AuditEntityPushed,
			fmt.Sprintf("Entity %q pushed by %q", models.CanonicalEntity(id, host), caller.Name),
			&caller.UUID, &entity.UUID)
	}
	WriteCreated(w, entity.UUID)
}

// List handles GET /entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := allowRead(w, r, h.cfg.Server.PublicEntities); !ok {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	limit, page := params.Pagination()

	entities, err := h.entities.GetEntities(r.Context(), limit, page)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, entities)
}

// Get handles GET /entities/{id}.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := allowRead(w, r, h.cfg.Server.PublicEntities); !ok {
		return
	}
	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, entity)
}

// Delete handles DELETE /entities/{id}.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}

	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	if err := h.entities.DeleteEntity(r.Context(), entity.UUID); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditEntityDeleted,
		fmt.Sprintf("Entity %q deleted by %q",
			models.CanonicalEntity(entity.ID, entity.Host), caller.Name),
		&caller.UUID, nil)
	WriteResults(w, entity.UUID)
}

// Query handles GET /entities/{id}/query: the full abuse dossier.
// Confidential evidence and lifted blacklist records are visible only to
// callers with blacklist management rights.
func (h *EntityHandler) Query(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicEntities)
	if !ok {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	privileged := caller != nil && caller.ManageBlacklist
	includeLifted := privileged && params.Bool("include_lifted")
	result, err := h.entities.QueryEntity(r.Context(), entity, privileged, includeLifted)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, result)
}

// Audit handles GET /entities/{id}/audit.
func (h *EntityHandler) Audit(w http.ResponseWriter, r *http.Request) {
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

	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	var types []models.AuditType
	if caller == nil {
		types = h.auditlog.PublicTypes()
	}
	entries, err := h.auditlog.GetEntriesByEntity(r.Context(), entity.UUID, limit, page, types)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, entries)
}

// Blacklist handles GET /entities/{id}/blacklist.
func (h *EntityHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicBlacklist)
	if !ok {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	limit, page := params.Pagination()

	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	includeLifted := caller != nil && caller.ManageBlacklist && params.Bool("include_lifted")
	records, err := h.blacklist.GetBlacklistByEntity(r.Context(), entity.UUID, limit, page, includeLifted)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}

// Evidence handles GET /entities/{id}/evidence.
func (h *EntityHandler) Evidence(w http.ResponseWriter, r *http.Request) {
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

	entity, err := h.entities.ResolveEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	includeConfidential := caller != nil && caller.ManageBlacklist
	records, err := h.evidence.GetEvidenceByEntity(r.Context(), entity.UUID, limit, page, includeConfidential)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}
