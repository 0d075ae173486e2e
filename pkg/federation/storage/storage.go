// Package storage implements the content-addressed file store for
// attachment bytes. Files live flat under the storage root, named by the
// attachment UUID with no extension, mode 0640.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/abuseshield/federation/pkg/federation/models"
)

// DirMode is the storage directory permission.
const DirMode = 0o750

// FileMode is the stored attachment permission: owner and group read.
const FileMode = 0o640

// Store writes and serves attachment files under a single root directory.
type Store struct {
	root     string
	maxFiles int
}

// New ensures the storage root exists and is writable. maxFiles caps the
// number of stored files; zero disables the cap.
func New(root string, maxFiles int) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(root, DirMode); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", root, err)
	}
	// Probe writability up front so misconfiguration surfaces at startup,
	// not on the first upload.
	probe, err := os.CreateTemp(root, "probe-*")
	if err != nil {
		return nil, fmt.Errorf("storage directory %s is not writable: %w", root, err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	return &Store{root: root, maxFiles: maxFiles}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the on-disk location for an attachment UUID.
func (s *Store) Path(uuid string) string {
	return filepath.Join(s.root, uuid)
}

// Save streams src into the store under uuid. The bytes land in a
// temporary file first and are renamed into place, so a reader never sees
// a partial attachment. On any failure both the temp and the final file
// are unlinked. Returns the number of bytes written.
func (s *Store) Save(uuid string, src io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.root, "tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write attachment: %w", err)
	}

	if err := os.Chmod(tmpName, FileMode); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to set attachment permissions: %w", err)
	}

	dst := s.Path(uuid)
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		_ = os.Remove(dst)
		return 0, fmt.Errorf("failed to store attachment: %w", err)
	}
	return size, nil
}

// Open returns the file for an attachment UUID. The caller closes it.
func (s *Store) Open(uuid string) (*os.File, error) {
	return os.Open(s.Path(uuid))
}

// Delete unlinks the attachment file. A missing file is not an error:
// deletion is best-effort after the metadata row is gone.
func (s *Store) Delete(uuid string) error {
	err := os.Remove(s.Path(uuid))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Count returns the number of regular files in the store.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// Full reports whether the file-count cap has been reached.
func (s *Store) Full() (bool, error) {
	if s.maxFiles <= 0 {
		return false, nil
	}
	n, err := s.Count()
	if err != nil {
		return false, err
	}
	return n >= s.maxFiles, nil
}

// SanitizeFilename reduces a client-supplied filename to a safe basename:
// path components stripped, control characters removed, length capped
// with the extension preserved. Returns "attachment" if nothing is left.
func SanitizeFilename(name string) string {
	// Strip any path, from either separator convention.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimSpace(b.String())
	if name == "" || name == "." || name == ".." {
		return "attachment"
	}

	if len(name) > models.MaxAttachmentNameLength {
		ext := filepath.Ext(name)
		if len(ext) >= models.MaxAttachmentNameLength {
			ext = ""
		}
		base := name[:models.MaxAttachmentNameLength-len(ext)]
		name = base + ext
	}
	return name
}
