package overlay

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// CopyCIDir installs the CI definition directory kept under the config path
// at the repository's top level, replacing whatever the replayed commit had
// there. No-op when the config path carries no such directory.
func CopyCIDir(fs billy.Filesystem, configPath, ciDir string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	src := filepath.Join(configPath, ciDir)
	fi, err := fs.Lstat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !fi.IsDir() {
		return nil
	}

	if _, err := fs.Lstat(ciDir); err == nil {
		if err := util.RemoveAll(fs, ciDir); err != nil {
			return fmt.Errorf("remove existing %s: %w", ciDir, err)
		}
	}
	if err := copyDir(fs, src, ciDir); err != nil {
		return err
	}
	log.Debug("installed CI definitions", slog.String("from", src), slog.String("to", ciDir))
	return nil
}

func copyDir(fs billy.Filesystem, src, dst string) error {
	if err := fs.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dst, err)
	}
	entries, err := fs.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(fs, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(fs, srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(fs billy.Filesystem, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := fs.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}
