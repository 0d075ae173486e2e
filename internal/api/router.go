// Package api assembles the HTTP surface: router, middleware chain and
// route table.
package api

import (
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abuseshield/federation/internal/api/handlers"
	"github.com/abuseshield/federation/internal/api/middleware"
	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/service"
	"github.com/abuseshield/federation/pkg/metrics"
)

//go:embed assets/favicon.ico
var favicon []byte

// Services bundles the domain services the router wires handlers to.
type Services struct {
	Operators   *service.OperatorService
	Entities    *service.EntityService
	Evidence    *service.EvidenceService
	Attachments *service.AttachmentService
	Blacklist   *service.BlacklistService
	AuditLog    *service.AuditLogService
}

// NewRouter builds the route table. Every request flows through request
// tagging, logging, panic recovery, permissive CORS, metrics and the
// authenticator before reaching its handler.
func NewRouter(svc Services, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "PUT", "GET", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(measureRequests)
	r.Use(middleware.NewAuthenticator(svc.Operators, cfg).Authenticate)

	// Unknown method/path pairings are a client error, not a routing 404.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handlers.BadRequest(w, "Unknown route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handlers.BadRequest(w, "Unknown route")
	})

	info := handlers.NewInfoHandler(cfg)
	operators := handlers.NewOperatorHandler(svc.Operators, svc.Evidence, svc.Blacklist, svc.AuditLog, cfg)
	entities := handlers.NewEntityHandler(svc.Entities, svc.Blacklist, svc.Evidence, svc.AuditLog, cfg)
	evidence := handlers.NewEvidenceHandler(svc.Evidence, svc.Entities, svc.AuditLog, cfg)
	attachments := handlers.NewAttachmentHandler(svc.Attachments, svc.Evidence, svc.AuditLog, cfg)
	blacklist := handlers.NewBlacklistHandler(svc.Blacklist, svc.Entities, svc.AuditLog, cfg)
	audit := handlers.NewAuditHandler(svc.AuditLog, cfg)

	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/x-icon")
		_, _ = w.Write(favicon)
	})

	r.Get("/info", info.Get)

	r.Route("/operators", func(r chi.Router) {
		r.Post("/", operators.Create)
		r.Get("/", operators.List)
		r.Get("/self", operators.Self)
		r.Post("/refresh", operators.Refresh)
		r.Route("/{uuid:[0-9a-fA-F-]{36}}", func(r chi.Router) {
			r.Get("/", operators.Get)
			r.Post("/delete", operators.Delete)
			r.Post("/enable", operators.Enable)
			r.Post("/disable", operators.Disable)
			r.Post("/manage_operators", operators.SetManageOperators)
			r.Post("/manage_blacklist", operators.SetManageBlacklist)
			r.Post("/manage_client", operators.SetClient)
			r.Post("/refresh", operators.Refresh)
			r.Get("/audit", operators.Audit)
			r.Get("/evidence", operators.Evidence)
			r.Get("/blacklist", operators.Blacklist)
		})
	})

	r.Route("/entities", func(r chi.Router) {
		r.Post("/", entities.Push)
		r.Get("/", entities.List)
		r.Route("/{id:(?:[0-9a-fA-F-]{36}|[0-9a-fA-F]{64})}", func(r chi.Router) {
			r.Get("/", entities.Get)
			r.Delete("/", entities.Delete)
			r.Get("/query", entities.Query)
			r.Get("/audit", entities.Audit)
			r.Get("/blacklist", entities.Blacklist)
			r.Get("/evidence", entities.Evidence)
		})
	})

	r.Route("/evidence", func(r chi.Router) {
		r.Post("/", evidence.Create)
		r.Get("/", evidence.List)
		r.Route("/{uuid:[0-9a-fA-F-]{36}}", func(r chi.Router) {
			r.Get("/", evidence.Get)
			r.Delete("/", evidence.Delete)
			r.Post("/update_confidentiality", evidence.UpdateConfidentiality)
		})
	})

	r.Route("/attachments", func(r chi.Router) {
		r.Post("/", attachments.Upload)
		r.Route("/{uuid:[0-9a-fA-F-]{36}}", func(r chi.Router) {
			r.Get("/", attachments.Download)
			r.Get("/info", attachments.Info)
			r.Delete("/", attachments.Delete)
		})
	})

	r.Route("/blacklist", func(r chi.Router) {
		r.Post("/", blacklist.Create)
		r.Get("/", blacklist.List)
		r.Route("/{uuid:[0-9a-fA-F-]{36}}", func(r chi.Router) {
			r.Get("/", blacklist.Get)
			r.Delete("/", blacklist.Delete)
			r.Post("/lift", blacklist.Lift)
			r.Post("/attach_evidence", blacklist.AttachEvidence)
		})
	})

	r.Route("/audit", func(r chi.Router) {
		r.Get("/", audit.List)
		r.Get("/{uuid:[0-9a-fA-F-]{36}}", audit.Get)
	})

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}

// requestLogger logs one line per request after it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// measureRequests records Prometheus counters and latency per route
// pattern. The pattern, not the raw path, keeps label cardinality
// bounded.
func measureRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
