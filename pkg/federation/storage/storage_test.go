package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abuseshield/federation/pkg/federation/models"
)

func setupStore(t *testing.T, maxFiles int) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "storage"), maxFiles)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return s
}

func TestSaveOpenDelete(t *testing.T) {
	s := setupStore(t, 0)

	content := "evidence bytes"
	size, err := s.Save("a1b2", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}

	info, err := os.Stat(s.Path("a1b2"))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if info.Mode().Perm() != FileMode {
		t.Errorf("file mode = %o, want %o", info.Mode().Perm(), FileMode)
	}

	f, err := s.Open("a1b2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	buf := make([]byte, len(content))
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(buf) != content {
		t.Errorf("content = %q, want %q", buf, content)
	}

	if err := s.Delete("a1b2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.Path("a1b2")); !os.IsNotExist(err) {
		t.Error("file still present after Delete")
	}

	// Deleting again is not an error.
	if err := s.Delete("a1b2"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := setupStore(t, 0)

	if _, err := s.Save("x", strings.NewReader("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestCountAndFull(t *testing.T) {
	s := setupStore(t, 2)

	full, err := s.Full()
	if err != nil || full {
		t.Fatalf("empty store Full = %v, %v", full, err)
	}

	for _, id := range []string{"a", "b"} {
		if _, err := s.Save(id, strings.NewReader("x")); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	full, err = s.Full()
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if !full {
		t.Error("store at cap should report full")
	}
}

func TestSanitizeFilename(t *testing.T) {
	long := strings.Repeat("a", models.MaxAttachmentNameLength+50)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "report.pdf", want: "report.pdf"},
		{name: "unix path", in: "/etc/passwd", want: "passwd"},
		{name: "windows path", in: `C:\Users\x\evil.exe`, want: "evil.exe"},
		{name: "traversal", in: "../../secret.txt", want: "secret.txt"},
		{name: "control chars", in: "re\x00port\n.pdf", want: "report.pdf"},
		{name: "empty", in: "", want: "attachment"},
		{name: "dot", in: ".", want: "attachment"},
		{name: "dotdot", in: "..", want: "attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("long name keeps extension", func(t *testing.T) {
		got := SanitizeFilename(long + ".pdf")
		if len(got) > models.MaxAttachmentNameLength {
			t.Errorf("length = %d, want <= %d", len(got), models.MaxAttachmentNameLength)
		}
		if !strings.HasSuffix(got, ".pdf") {
			t.Errorf("extension lost: %q", got[len(got)-8:])
		}
	})
}
