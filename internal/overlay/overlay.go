// Package overlay captures configuration files from the fork's main branch
// and restores them on top of every replayed commit, so the fork's CI setup
// survives resets to arbitrary upstream trees.
package overlay

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Map holds the captured overlay: repository-relative path to exact blob
// bytes. It is filled once per run, before the first reset, and is read-only
// afterwards.
type Map map[string][]byte

// Capture reads every file in the tree whose path starts with one of the
// given roots. Content comes verbatim from the tree's blobs, never from the
// working tree.
func Capture(tree *object.Tree, roots []string) (Map, error) {
	captured := Map{}
	iter := tree.Files()
	defer iter.Close()
	err := iter.ForEach(func(f *object.File) error {
		if !matchesRoot(f.Name, roots) {
			return nil
		}
		r, err := f.Blob.Reader()
		if err != nil {
			return fmt.Errorf("open blob %s: %w", f.Name, err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read blob %s: %w", f.Name, err)
		}
		captured[f.Name] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return captured, nil
}

// Paths returns the captured paths in sorted order so restoration and logs
// are deterministic.
func (m Map) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Apply restores every captured file into the filesystem, overwriting
// whatever the replayed commit put at those paths.
func (m Map) Apply(fs billy.Filesystem, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	for _, path := range m.Paths() {
		if err := ExportBlob(fs, path, m[path], log); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		log.Debug("restored overlay file", slog.String("path", path), slog.Int("bytes", len(m[path])))
	}
	return nil
}

func matchesRoot(path string, roots []string) bool {
	for _, root := range roots {
		if root != "" && strings.HasPrefix(path, root) {
			return true
		}
	}
	return false
}
