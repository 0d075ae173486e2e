package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/internal/api/middleware"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// OperatorHandler handles the operator management routes.
type OperatorHandler struct {
	operators *service.OperatorService
	evidence  *service.EvidenceService
	blacklist *service.BlacklistService
	auditlog  *service.AuditLogService
	cfg       *config.Config
}

// NewOperatorHandler creates the operator handler. The evidence and
// blacklist services back the per-operator sublist routes.
func NewOperatorHandler(ops *service.OperatorService, ev *service.EvidenceService, bl *service.BlacklistService, audit *service.AuditLogService, cfg *config.Config) *OperatorHandler {
	return &OperatorHandler{operators: ops, evidence: ev, blacklist: bl, auditlog: audit, cfg: cfg}
}

// Create handles POST /operators.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageOperators)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	op, err := h.operators.CreateOperator(r.Context(), params.Get("name"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditOperatorCreated,
		fmt.Sprintf("Operator %q created by %q", op.Name, caller.Name),
		&caller.UUID, nil)
	WriteCreated(w, op.UUID)
}

// List handles GET /operators.
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	if requirePermission(w, r, canManageOperators) == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	limit, page := params.Pagination()

	ops, err := h.operators.GetOperators(r.Context(), limit, page)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, ops)
}

// Self handles GET /operators/self: the caller's own record, API key
// included.
func (h *OperatorHandler) Self(w http.ResponseWriter, r *http.Request) {
	caller := requireOperator(w, r)
	if caller == nil {
		return
	}
	WriteResults(w, caller)
}

// Get handles GET /operators/{uuid}. Callers without operator management
// rights see a redacted record.
func (h *OperatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	op, err := h.operators.GetOperator(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	caller := middleware.OperatorFrom(r.Context())
	if caller == nil || (!caller.ManageOperators && caller.UUID != op.UUID) {
		WriteResults(w, op.Redacted())
		return
	}
	WriteResults(w, op)
}

// Delete handles POST /operators/{uuid}/delete.
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageOperators)
	if caller == nil {
		return
	}
	uuid := chi.URLParam(r, "uuid")

	op, err := h.operators.GetOperator(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if err := h.operators.DeleteOperator(r.Context(), uuid); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditOperatorDeleted,
		fmt.Sprintf("Operator %q deleted by %q", op.Name, caller.Name),
		&caller.UUID, nil)
	WriteResults(w, op.UUID)
}

// Enable handles POST /operators/{uuid}/enable.
func (h *OperatorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggleDisabled(w, r, false)
}

// Disable handles POST /operators/{uuid}/disable.
func (h *OperatorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggleDisabled(w, r, true)
}

func (h *OperatorHandler) toggleDisabled(w http.ResponseWriter, r *http.Request, disable bool) {
	caller := requirePermission(w, r, canManageOperators)
	if caller == nil {
		return
	}
	uuid := chi.URLParam(r, "uuid")

	var op *models.Operator
	var err error
	var typ models.AuditType
	var verb string
	if disable {
		op, err = h.operators.DisableOperator(r.Context(), uuid)
		typ, verb = models.AuditOperatorDisabled, "disabled"
	} else {
		op, err = h.operators.EnableOperator(r.Context(), uuid)
		typ, verb = models.AuditOperatorEnabled, "enabled"
	}
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), typ,
		fmt.Sprintf("Operator %q %s by %q", op.Name, verb, caller.Name),
		&caller.UUID, nil)
	WriteResults(w, op.UUID)
}

// SetManageOperators handles POST /operators/{uuid}/manage_operators.
// The boolean `value` parameter is required.
func (h *OperatorHandler) SetManageOperators(w http.ResponseWriter, r *http.Request) {
	h.setPermission(w, r, "manage_operators", h.operators.SetManageOperators)
}

// SetManageBlacklist handles POST /operators/{uuid}/manage_blacklist.
func (h *OperatorHandler) SetManageBlacklist(w http.ResponseWriter, r *http.Request) {
	h.setPermission(w, r, "manage_blacklist", h.operators.SetManageBlacklist)
}

// SetClient handles POST /operators/{uuid}/manage_client.
func (h *OperatorHandler) SetClient(w http.ResponseWriter, r *http.Request) {
	h.setPermission(w, r, "is_client", h.operators.SetClient)
}

func (h *OperatorHandler) setPermission(w http.ResponseWriter, r *http.Request, name string, apply func(ctx context.Context, uuid string, allowed bool) (*models.Operator, error)) {
	caller := requirePermission(w, r, canManageOperators)
	if caller == nil {
		return
	}
	params, err := ParseParams(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if !params.Has("value") {
		BadRequest(w, "The value parameter is required")
		return
	}

	op, err := apply(r.Context(), chi.URLParam(r, "uuid"), params.Bool("value"))
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditOperatorPermissionsChanged,
		fmt.Sprintf("Permission %s of operator %q set to %t by %q",
			name, op.Name, params.Bool("value"), caller.Name),
		&caller.UUID, nil)
	WriteResults(w, op.UUID)
}

// Refresh handles POST /operators/refresh and
// POST /operators/{uuid}/refresh. Operators may refresh their own key;
// refreshing another operator's key requires management rights. The
// master key lives in configuration and cannot be rotated here.
func (h *OperatorHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	caller := requireOperator(w, r)
	if caller == nil {
		return
	}

	uuid := chi.URLParam(r, "uuid")
	if uuid == "" {
		uuid = caller.UUID
	}
	if uuid != caller.UUID && !caller.ManageOperators {
		Forbidden(w, "Insufficient permissions")
		return
	}

	target, err := h.operators.GetOperator(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if target.IsMaster() {
		Forbidden(w, "Cannot refresh API key for master operator")
		return
	}

	op, err := h.operators.RefreshAPIKey(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditOperatorPermissionsChanged,
		fmt.Sprintf("API key of operator %q refreshed by %q", op.Name, caller.Name),
		&caller.UUID, nil)
	WriteResults(w, op.APIKey)
}

// Audit handles GET /operators/{uuid}/audit.
func (h *OperatorHandler) Audit(w http.ResponseWriter, r *http.Request) {
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
	if caller == nil {
		types = h.auditlog.PublicTypes()
	}
	entries, err := h.auditlog.GetEntriesByOperator(r.Context(), chi.URLParam(r, "uuid"), limit, page, types)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, entries)
}

// Evidence handles GET /operators/{uuid}/evidence.
func (h *OperatorHandler) Evidence(w http.ResponseWriter, r *http.Request) {
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
	records, err := h.evidence.GetEvidenceByOperator(r.Context(), chi.URLParam(r, "uuid"), limit, page, includeConfidential)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}

// Blacklist handles GET /operators/{uuid}/blacklist.
func (h *OperatorHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
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
	records, err := h.blacklist.GetBlacklistByOperator(r.Context(), chi.URLParam(r, "uuid"), limit, page, includeLifted)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteResults(w, records)
}
