package files

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// WalkEnumerator lists files by walking a filesystem in process.
type WalkEnumerator struct {
	Fs afero.Fs
}

// NewWalkEnumerator creates a WalkEnumerator over fsys.
func NewWalkEnumerator(fsys afero.Fs) *WalkEnumerator {
	return &WalkEnumerator{Fs: fsys}
}

// List implements Enumerator. Unreadable entries are skipped.
func (w *WalkEnumerator) List(ctx context.Context, root string, exts, excludes []string) ([]string, error) {
	exts, err := normalizeExts(exts)
	if err != nil {
		return nil, err
	}
	if err := validatePatterns(excludes); err != nil {
		return nil, err
	}

	root = filepath.Clean(root)
	var found []string
	err = afero.Walk(w.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if excluded(rel, true, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || excluded(rel, false, excludes) {
			return nil
		}
		if hasExt(info.Name(), exts) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

// excluded reports whether the slash-separated relative path matches any
// pattern.
func excluded(rel string, dir bool, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if dir && strings.HasSuffix(p, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/**"), rel); ok {
				return true
			}
		}
	}
	return false
}

// excludedPath reports whether the file at rel is excluded, either itself or
// through a directory on its path that the walk would have pruned.
func excludedPath(rel string, patterns []string) bool {
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && excluded(rel[:i], true, patterns) {
			return true
		}
	}
	return excluded(rel, false, patterns)
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}
