// Package files enumerates the source files of a project.
//
// An Enumerator lists the regular files below a root whose names end in one
// of the given extensions, pruning every subtree that matches an exclude
// pattern before descending into it. Results are sorted.
//
// Exclude patterns use doublestar syntax and are matched against the path
// relative to the root, with forward slashes, by every enumerator. A pattern
// ending in "/**" also prunes the directory named by its prefix, so
// "**/vendor/**" skips every vendor directory outright. A directory matched
// by a pattern is pruned with everything below it, so "lib/*" excludes
// lib/sub/x.lua as well.
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Errors returned by enumerators.
var (
	// ErrNoExtensions is returned when no usable extension is given.
	ErrNoExtensions = errors.New("no file extensions configured")

	// ErrBadPattern is wrapped when an exclude pattern is malformed.
	ErrBadPattern = errors.New("invalid exclude pattern")
)

// Enumerator lists project files.
type Enumerator interface {
	// List returns the files below root matching any of exts and none of
	// excludes, sorted.
	List(ctx context.Context, root string, exts, excludes []string) ([]string, error)
}

// StartError reports that the enumeration process could not be started.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("cannot start %s: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// normalizeExts trims leading dots and drops empty entries.
func normalizeExts(exts []string) ([]string, error) {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimLeft(strings.TrimSpace(ext), ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoExtensions
	}
	return out, nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
	}
	return nil
}
