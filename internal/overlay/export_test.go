package overlay

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func readFile(t *testing.T, fs billy.Filesystem, path string) []byte {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestExportBlob_WritesNewFile(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	if err := ExportBlob(fs, "ci/config.yml", []byte("A"), discardLogger()); err != nil {
		t.Fatalf("ExportBlob: %v", err)
	}
	if got := readFile(t, fs, "ci/config.yml"); !bytes.Equal(got, []byte("A")) {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestExportBlob_OverwritesExistingFile(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	if err := util.WriteFile(fs, "ci/config.yml", []byte("old content"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := ExportBlob(fs, "ci/config.yml", []byte("new"), discardLogger()); err != nil {
		t.Fatalf("ExportBlob: %v", err)
	}
	if got := readFile(t, fs, "ci/config.yml"); !bytes.Equal(got, []byte("new")) {
		t.Fatalf("old content not fully replaced: %q", got)
	}
}

func TestExportBlob_SkipsDirectoryDestination(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	if err := util.WriteFile(fs, "ci/config.yml/nested.txt", []byte("keep"), 0o644); err != nil {
		t.Fatalf("seed directory: %v", err)
	}
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	if err := ExportBlob(fs, "ci/config.yml", []byte("clobber"), log); err != nil {
		t.Fatalf("ExportBlob should not fail on a directory destination: %v", err)
	}
	if got := readFile(t, fs, "ci/config.yml/nested.txt"); !bytes.Equal(got, []byte("keep")) {
		t.Fatalf("directory contents were touched: %q", got)
	}
	// The conflict is reported through the caller's logger, not a global one.
	if !strings.Contains(buf.String(), "directory already exists") {
		t.Fatalf("expected a conflict warning in the provided logger:\n%s", buf.String())
	}
}

func TestExportBlob_ReplacesFileOccupyingParentSegment(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	if err := util.WriteFile(fs, "ci", []byte("i am a file"), 0o644); err != nil {
		t.Fatalf("seed conflicting file: %v", err)
	}
	if err := ExportBlob(fs, "ci/config.yml", []byte("A"), discardLogger()); err != nil {
		t.Fatalf("ExportBlob: %v", err)
	}
	if got := readFile(t, fs, "ci/config.yml"); !bytes.Equal(got, []byte("A")) {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestExportBlob_BinarySafe(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	data := []byte{0x00, 0xff, 0x10, 0x00, 0x7f}
	if err := ExportBlob(fs, "assets/blob.bin", data, discardLogger()); err != nil {
		t.Fatalf("ExportBlob: %v", err)
	}
	if got := readFile(t, fs, "assets/blob.bin"); !bytes.Equal(got, data) {
		t.Fatalf("bytes not preserved: %v", got)
	}
}
