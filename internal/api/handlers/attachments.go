package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/service"
)

// downloadChunkSize is the streaming unit for attachment downloads. Each
// chunk is flushed so per-request memory stays bounded on large files.
const downloadChunkSize = 8 * 1024

// multipartOverhead is the slack allowed on top of max_upload_size for
// multipart framing and the evidence field, so a file of exactly the
// configured maximum still uploads.
const multipartOverhead = 1 << 20

// AttachmentHandler handles attachment upload, download and deletion.
type AttachmentHandler struct {
	attachments *service.AttachmentService
	evidence    *service.EvidenceService
	auditlog    *service.AuditLogService
	cfg         *config.Config
}

// NewAttachmentHandler creates the attachment handler.
func NewAttachmentHandler(att *service.AttachmentService, ev *service.EvidenceService, audit *service.AuditLogService, cfg *config.Config) *AttachmentHandler {
	return &AttachmentHandler{attachments: att, evidence: ev, auditlog: audit, cfg: cfg}
}

// Upload handles POST /attachments: a multipart form with an `evidence`
// field naming the evidence UUID and a `file` part carrying the bytes.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}

	maxSize := h.cfg.Server.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(downloadChunkSize); err != nil {
		BadRequest(w, "Malformed multipart upload")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("failed to clean up multipart temp files", "error", err)
		}
	}()

	evidenceUUID := r.FormValue("evidence")
	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequest(w, "The file part is required")
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		BadRequest(w, fmt.Sprintf("File exceeds the maximum upload size of %d bytes", maxSize))
		return
	}

	att, err := h.attachments.Upload(r.Context(), evidenceUUID, header.Filename, file)
	if err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditAttachmentUploaded,
		fmt.Sprintf("Attachment %q uploaded for evidence %s by %q",
			att.FileName, att.EvidenceUUID, caller.Name),
		&caller.UUID, nil)
	WriteCreated(w, att.UUID)
}

// resolveReadable loads the attachment and enforces the confidentiality
// gate of its evidence record. Returns nil when the response has been
// written.
func (h *AttachmentHandler) resolveReadable(w http.ResponseWriter, r *http.Request) *models.Attachment {
	caller, ok := allowRead(w, r, h.cfg.Server.PublicEvidence)
	if !ok {
		return nil
	}

	att, err := h.attachments.GetAttachment(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		ServiceError(w, err)
		return nil
	}
	ev, err := h.evidence.GetEvidence(r.Context(), att.EvidenceUUID)
	if err != nil {
		ServiceError(w, err)
		return nil
	}
	if ev.Confidential {
		if caller == nil {
			Unauthorized(w, "Authentication required")
			return nil
		}
		if !caller.ManageBlacklist {
			Forbidden(w, "Insufficient permissions")
			return nil
		}
	}
	return att
}

// Download handles GET /attachments/{uuid}: the stored bytes, streamed in
// fixed chunks.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	att := h.resolveReadable(w, r)
	if att == nil {
		return
	}

	att, f, err := h.attachments.OpenFile(r.Context(), att.UUID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", att.FileMime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", att.FileSize))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, downloadChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away mid-download.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			logger.Error("failed to read attachment file", "uuid", att.UUID, "error", err)
			return
		}
	}
}

// Info handles GET /attachments/{uuid}/info: the metadata row.
func (h *AttachmentHandler) Info(w http.ResponseWriter, r *http.Request) {
	att := h.resolveReadable(w, r)
	if att == nil {
		return
	}
	WriteResults(w, att)
}

// Delete handles DELETE /attachments/{uuid}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := requirePermission(w, r, canManageBlacklist)
	if caller == nil {
		return
	}
	uuid := chi.URLParam(r, "uuid")

	att, err := h.attachments.GetAttachment(r.Context(), uuid)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if err := h.attachments.DeleteAttachment(r.Context(), uuid); err != nil {
		ServiceError(w, err)
		return
	}

	h.auditlog.CreateEntry(r.Context(), models.AuditAttachmentDeleted,
		fmt.Sprintf("Attachment %q deleted by %q", att.FileName, caller.Name),
		&caller.UUID, nil)
	WriteResults(w, att.UUID)
}
