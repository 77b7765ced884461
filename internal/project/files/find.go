package files

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/projconf/internal/logging"
)

// FindEnumerator lists files by running find(1). The call blocks until find
// exits and its output is drained; only ctx bounds it.
//
// Exclude patterns naming a literal path ("gen", "dir/**", "**/vendor/**")
// become -prune expressions. Every pattern is then applied to find's output
// the way WalkEnumerator applies it, so both list the same files.
type FindEnumerator struct {
	// Command is the find executable. Defaults to "find".
	Command string

	logger zerolog.Logger
}

// NewFindEnumerator creates a FindEnumerator using find from PATH.
func NewFindEnumerator() *FindEnumerator {
	return &FindEnumerator{
		Command: "find",
		logger:  logging.With("files"),
	}
}

// List implements Enumerator. A find that starts but exits non-zero (for
// example on an unreadable directory) still yields the paths it printed;
// its diagnostics are logged.
func (f *FindEnumerator) List(ctx context.Context, root string, exts, excludes []string) ([]string, error) {
	exts, err := normalizeExts(exts)
	if err != nil {
		return nil, err
	}
	if err := validatePatterns(excludes); err != nil {
		return nil, err
	}

	command := f.Command
	if command == "" {
		command = "find"
	}
	args := Args(root, exts, excludes)

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Command: command, Err: err}
	}

	f.logger.Debug().Str("command", command).Strs("args", args).Msg("enumerating files")
	if err := cmd.Start(); err != nil {
		return nil, &StartError{Command: command, Err: err}
	}

	var found []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			found = append(found, line)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.logger.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("find reported errors")
	}
	if scanErr != nil {
		return nil, scanErr
	}

	if len(excludes) > 0 {
		root = filepath.Clean(root)
		kept := found[:0]
		for _, path := range found {
			rel, err := filepath.Rel(root, path)
			if err == nil && excludedPath(filepath.ToSlash(rel), excludes) {
				continue
			}
			kept = append(kept, path)
		}
		found = kept
	}

	sort.Strings(found)
	return found, nil
}

// Args builds the find arguments for root, extensions and exclude patterns:
//
//	root -mindepth 1 ( -path P1 -o -path P2 ) -prune -o -type f ( -name *.e1 -o -name *.e2 ) -print
//
// Only excludes naming a literal path are pruned; the prune clause is
// omitted when there are none.
func Args(root string, exts, excludes []string) []string {
	root = filepath.Clean(root)
	args := []string{root, "-mindepth", "1"}

	var prune []string
	for _, p := range excludes {
		if fp, ok := findPattern(root, p); ok {
			prune = append(prune, fp)
		}
	}
	if len(prune) > 0 {
		args = append(args, "(")
		for i, p := range prune {
			if i > 0 {
				args = append(args, "-o")
			}
			args = append(args, "-path", p)
		}
		args = append(args, ")", "-prune", "-o")
	}

	args = append(args, "-type", "f", "(")
	for i, ext := range exts {
		if i > 0 {
			args = append(args, "-o")
		}
		args = append(args, "-name", "*."+escapeGlob(strings.TrimLeft(ext, ".")))
	}
	return append(args, ")", "-print")
}

// findPattern translates an exclude pattern into a find -path pattern when
// it names a literal path, optionally under "**/" and optionally followed by
// "/**". Other patterns report false.
func findPattern(root, pattern string) (string, bool) {
	p := strings.TrimSuffix(pattern, "/**")
	anywhere := strings.HasPrefix(p, "**/")
	p = strings.TrimPrefix(p, "**/")
	if p == "" || strings.ContainsAny(p, globMeta) {
		return "", false
	}
	if anywhere {
		return "*/" + p, true
	}
	return escapeGlob(root) + "/" + p, true
}

const globMeta = `*?[]{}\`

// escapeGlob quotes the fnmatch metacharacters in s.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
