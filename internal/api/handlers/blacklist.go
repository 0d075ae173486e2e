package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// BlacklistHandler handles the blacklist routes.
type BlacklistHandler struct {
	blacklist *service.BlacklistService
	entities  *service.EntityService
	auditlog  *service.AuditLogService
	cfg       *config.Config
}

// NewBlacklistHandler creates the blacklist handler.
func NewBlacklistHandler(bl *service.BlacklistService, ent *service.EntityService, audit *service.AuditLogService, cfg *config.Config) *BlacklistHandler {
	return &BlacklistHandler{blacklist: bl, entities: ent, auditlog: audit, cfg: cfg}
}

// Create handles POST /blacklist. The entity may be named by UUID or
// SHA-256 hash in the `entity_uuid` or `entity` parameter; `expires` is a
// Unix timestamp in seconds and must respect the configured minimum
// blacklist duration.
func (h *BlacklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	entityRef := params.Get("entity_uuid")
	if entityRef == "" {
		entityRef = params.Get("entity")
	}

	var expires *time.Time
	if params.Has("expires") {
		ts := params.Int64("expires", 0)
		if ts <= 0 {
			BadRequest(w, "The expires parameter must be a Unix timestamp")
			return
		}
		t := time.Unix(ts, 0)
		expires = &t
	}

	rec, err := h.blacklist.BlacklistEntity(r.Context(), caller.UUID, entityRef,
		models.BlacklistType(params.Get("type")), params.Get("evidence"), expires)
	if err != nil {
		if errors.Is(err, models.ErrExpiresTooSoon) {
			BadRequest(w, fmt.Sprintf("The expiration time must be at least %d seconds in the future",
				int64(h.cfg.Server.MinBlacklistTime.Seconds())))
			return
		}
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditEntityBlacklisted,
		fmt.Sprintf("Entity %s blacklisted as %s by %q", rec.EntityUUID, rec.Type, caller.Name),
		&caller.UUID, &rec.EntityUUID)
	WriteCreated(w, rec.UUID)
}

// List handles GET /blacklist.
func (h *BlacklistHandler) List(w http.ResponseWriter, r *http.Request) {
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

	includeLifted := caller != nil && caller.ManageBlacklist && params.Bool("include_lifted")
	records, err := h.blacklist.GetBlacklistRecords(r.Context(), limit, page, includeLifted)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}

// Get handles GET /blacklist/{uuid}.
func (h *BlacklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := allowRead(w, r, h.cfg.Server.PublicBlacklist); !ok {
		return
	}
	rec, err := h.blacklist.GetBlacklistRecord(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, rec)
}

// Delete handles DELETE /blacklist/{uuid}.
func (h *BlacklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	uuid := chi.URLParam(r, "uuid")

	rec, err := h.blacklist.GetBlacklistRecord(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if err := h.blacklist.DeleteBlacklistRecord(r.Context(), uuid); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditBlacklistRecordDeleted,
		fmt.Sprintf("Blacklist record %s deleted by %q", rec.UUID, caller.Name),
		&caller.UUID, &rec.EntityUUID)
	WriteResults(w, rec.UUID)
}

// Lift handles POST /blacklist/{uuid}/lift.
func (h *BlacklistHandler) Lift(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}

	rec, err := h.blacklist.LiftBlacklist(r.Context(), chi.URLParam(r, "uuid"), caller.UUID)
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditBlacklistLifted,
		fmt.Sprintf("Blacklist record %s lifted by %q", rec.UUID, caller.Name),
		&caller.UUID, &rec.EntityUUID)
	WriteResults(w, rec.UUID)
}

// AttachEvidence handles POST /blacklist/{uuid}/attach_evidence.
func (h *BlacklistHandler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	rec, err := h.blacklist.AttachEvidence(r.Context(), chi.URLParam(r, "uuid"), params.Get("evidence"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditBlacklistAttachmentAdded,
		fmt.Sprintf("Evidence attached to blacklist record %s by %q", rec.UUID, caller.Name),
		&caller.UUID, &rec.EntityUUID)
	WriteResults(w, rec.UUID)
}
