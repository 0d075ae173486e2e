// Package middleware provides the request authentication layer. Every
// route runs through the authenticator; it resolves the bearer token to
// an operator (or to nobody) and leaves the result in the request
// context for the handlers to consult.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

type contextKey string

const operatorKey contextKey = "operator"

// Authenticator resolves Authorization headers to operators.
type Authenticator struct {
	operators *service.OperatorService
	cfg       *config.Config
}

// NewAuthenticator creates the authenticator.
func NewAuthenticator(ops *service.OperatorService, cfg *config.Config) *Authenticator {
	return &Authenticator{operators: ops, cfg: cfg}
}

// Authenticate resolves the bearer token before the handler runs.
//
// No Authorization header leaves the request anonymous. A token of the
// wrong length is rejected outright; the configured master key resolves
// to the master operator, materializing its row on first use; any other
// token must match a stored, enabled operator.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeAuthError(w, http.StatusBadRequest, "Malformed Authorization header")
			return
		}
		if len(token) != models.APIKeyLength {
			writeAuthError(w, http.StatusBadRequest, "Malformed API key")
			return
		}

		var op *models.Operator
		var err error
		if token == a.cfg.Server.APIKey {
			op, err = a.operators.GetMasterOperator(r.Context())
		} else {
			op, err = a.operators.GetOperatorByAPIKey(r.Context(), token)
		}
		if err != nil {
			if errors.Is(err, models.ErrOperatorNotFound) {
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			logger.Error("authentication failed", "error", err)
			writeAuthError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if op.Disabled {
			writeAuthError(w, http.StatusForbidden, "Operator is disabled")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFrom returns the authenticated operator, or nil for anonymous
// requests.
func OperatorFrom(ctx context.Context) *models.Operator {
	op, _ := ctx.Value(operatorKey).(*models.Operator)
	return op
}

// WithOperator returns a context carrying the operator. Test helper.
func WithOperator(ctx context.Context, op *models.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// writeAuthError serializes the standard error envelope. Kept local so
// the middleware does not depend on the handlers package.
func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
