package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/storage"
	"github.com/abuseshield/federation/pkg/federation/store"
)

// ErrStorageFull is returned when the attachment store has reached its
// configured file-count cap.
var ErrStorageFull = fmt.Errorf("attachment storage is full")

// AttachmentService manages attachment metadata and the files behind it.
// Row and file are created and deleted together; the file always lands
// on disk before the row exists, so a row never points at nothing.
type AttachmentService struct {
	store store.Store
	files *storage.Store
	cfg   *config.Config
}

// NewAttachmentService creates the attachment manager.
func NewAttachmentService(s store.Store, files *storage.Store, cfg *config.Config) *AttachmentService {
	return &AttachmentService{store: s, files: files, cfg: cfg}
}

// Upload stores an attachment for an evidence record: the bytes go to the
// file store under a fresh UUID, the MIME type is sniffed from the leading
// bytes, and the metadata row is inserted last. A failed insert unlinks
// the file again.
func (s *AttachmentService) Upload(ctx context.Context, evidenceUUID, fileName string, src io.Reader) (*models.Attachment, error) {
	if !models.IsUUID(evidenceUUID) {
		return nil, fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}
	if _, err := s.store.GetEvidence(ctx, evidenceUUID); err != nil {
		return nil, err
	}

	full, err := s.files.Full()
	if err != nil {
		return nil, fmt.Errorf("failed to check storage capacity: %w", err)
	}
	if full {
		return nil, ErrStorageFull
	}

	// Sniff the MIME type from the first 512 bytes, then stitch them back
	// in front of the remaining stream.
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: attachment must not be empty", models.ErrInvalidArgument)
	}
	mime := http.DetectContentType(head)
	body := io.MultiReader(bytes.NewReader(head), src)

	id := uuid.New().String()
	size, err := s.files.Save(id, body)
	if err != nil {
		return nil, err
	}

	att := &models.Attachment{
		UUID:         id,
		EvidenceUUID: evidenceUUID,
		FileMime:     mime,
		FileName:     storage.SanitizeFilename(fileName),
		FileSize:     size,
	}
	if _, err := s.store.CreateAttachment(ctx, att); err != nil {
		_ = s.files.Delete(id)
		return nil, err
	}
	return att, nil
}

// GetAttachment fetches attachment metadata.
func (s *AttachmentService) GetAttachment(ctx context.Context, uuid string) (*models.Attachment, error) {
	if !models.IsUUID(uuid) {
		return nil, fmt.Errorf("%w: malformed attachment UUID", models.ErrInvalidArgument)
	}
	return s.store.GetAttachment(ctx, uuid)
}

// OpenFile returns the stored bytes for an attachment. The row is looked
// up first; a row whose file has gone missing is reported as not found.
func (s *AttachmentService) OpenFile(ctx context.Context, uuid string) (*models.Attachment, *os.File, error) {
	att, err := s.GetAttachment(ctx, uuid)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(att.UUID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, models.ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return att, f, nil
}

// GetAttachmentsByEvidence lists attachments for one evidence record.
func (s *AttachmentService) GetAttachmentsByEvidence(ctx context.Context, evidenceUUID string) ([]*models.Attachment, error) {
	if !models.IsUUID(evidenceUUID) {
		return nil, fmt.Errorf("%w: malformed evidence UUID", models.ErrInvalidArgument)
	}
	return s.store.ListAttachmentsByEvidence(ctx, evidenceUUID)
}

// DeleteAttachment removes the metadata row, then the file. Unlinking
// after the row delete means a crash between the two leaves an orphan
// file, never a dangling row.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, uuid string) error {
	att, err := s.GetAttachment(ctx, uuid)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAttachment(ctx, uuid); err != nil {
		return err
	}
	return s.files.Delete(att.UUID)
}

// CountRecords returns the total number of attachment rows.
func (s *AttachmentService) CountRecords(ctx context.Context) (int64, error) {
	return s.store.CountAttachments(ctx)
}
