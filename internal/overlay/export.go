package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ExportBlob writes data to path, replacing a regular file that is already
// there. When a directory occupies the destination the write is skipped and
// the directory is left untouched; that conflict is logged, not fatal. A
// regular file occupying a parent path segment is removed so the directory
// chain can be created, retried once.
func ExportBlob(fs billy.Filesystem, path string, data []byte, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if fi, err := fs.Lstat(path); err == nil {
		if fi.IsDir() {
			log.Warn("a directory already exists at overlay destination, skipping",
				slog.String("path", path))
			return nil
		}
		if err := fs.Remove(path); err != nil {
			return fmt.Errorf("remove existing file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat destination: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			if err := removeFileSegment(fs, dir); err != nil {
				return err
			}
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", dir, err)
			}
		}
	}
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// removeFileSegment deletes the first regular file found occupying a segment
// of the wanted directory path.
func removeFileSegment(fs billy.Filesystem, dir string) error {
	for p := dir; p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		fi, err := fs.Lstat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if fi.IsDir() {
			return fmt.Errorf("create directory %s: %s is a directory but MkdirAll failed", dir, p)
		}
		if err := fs.Remove(p); err != nil {
			return fmt.Errorf("remove conflicting file %s: %w", p, err)
		}
		return nil
	}
	return fmt.Errorf("create directory %s: no conflicting segment found", dir)
}
