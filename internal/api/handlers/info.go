package handlers

import (
	"net/http"

	"github.com/abuseshield/federation/internal/version"
	"github.com/abuseshield/federation/pkg/config"
)

// InfoHandler serves the server identity route.
type InfoHandler struct {
	cfg *config.Config
}

// NewInfoHandler creates the info handler.
func NewInfoHandler(cfg *config.Config) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

// serverInfo is the GET /info payload: what peers need to decide how to
// talk to this server.
type serverInfo struct {
	Name            string `json:"name"`
	BaseURL         string `json:"base_url"`
	Version         string `json:"version"`
	PublicAuditLogs bool   `json:"public_audit_logs"`
	PublicEvidence  bool   `json:"public_evidence"`
	PublicBlacklist bool   `json:"public_blacklist"`
	PublicEntities  bool   `json:"public_entities"`
}

// Get handles GET /info.
func (h *InfoHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteResults(w, serverInfo{
		Name:            h.cfg.Server.Name,
		BaseURL:         h.cfg.Server.BaseURL,
		Version:         version.Version,
		PublicAuditLogs: h.cfg.Server.PublicAuditLogs,
		PublicEvidence:  h.cfg.Server.PublicEvidence,
		PublicBlacklist: h.cfg.Server.PublicBlacklist,
		PublicEntities:  h.cfg.Server.PublicEntities,
	})
}
