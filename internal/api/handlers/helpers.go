// Package handlers implements the HTTP route handlers. Each handler
// follows the same contract: resolve the caller, check the route's
// permission bit, validate inputs, call the service, emit an audit entry
// for state changes, and serialize the result envelope.
package handlers

import (
	"net/http"

	"github.com/abuseshield/federation/internal/api/middleware"
	"github.com/abuseshield/federation/pkg/federation/models"
)

// requireOperator resolves the caller, writing 401 for anonymous
// requests. Returns nil when the response has been written.
func requireOperator(w http.ResponseWriter, r *http.Request) *models.Operator {
	op := middleware.OperatorFrom(r.Context())
	if op == nil {
		Unauthorized(w, "Authentication required")
		return nil
	}
	return op
}

// requirePermission resolves the caller and checks a permission bit.
// Returns nil when the response has been written.
func requirePermission(w http.ResponseWriter, r *http.Request, allowed func(*models.Operator) bool) *models.Operator {
	op := requireOperator(w, r)
	if op == nil {
		return nil
	}
	if !allowed(op) {
		Forbidden(w, "Insufficient permissions")
		return nil
	}
	return op
}

// allowRead gates a conditionally public read route: authenticated
// callers always pass, anonymous callers pass only when the kind is
// public. ok is false when the 401 has been written; op is nil for an
// admitted anonymous caller.
func allowRead(w http.ResponseWriter, r *http.Request, public bool) (op *models.Operator, ok bool) {
	op = middleware.OperatorFrom(r.Context())
	if op == nil && !public {
		Unauthorized(w, "Authentication required")
		return nil, false
	}
	return op, true
}

func canManageOperators(op *models.Operator) bool { return op.ManageOperators }
func canManageBlacklist(op *models.Operator) bool { return op.ManageBlacklist }
func isClient(op *models.Operator) bool           { return op.IsClient }
