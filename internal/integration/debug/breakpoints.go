package debug

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cast"

	"github.com/dshills/projconf/internal/integration/debug/dap"
)

// FileBreakpoints are the breakpoints requested for one source file.
type FileBreakpoints struct {
	Path        string
	Breakpoints []dap.SourceBreakpoint
}

// ParseBreakpoints reads debug_config.breakpoints. Two shapes are accepted:
// a list of tables
//
//	{ { file = "main.go", line = 10, condition = "n > 2" }, ... }
//
// or a table from file to line numbers
//
//	{ ["main.go"] = { 10, 24 } }
//
// Relative files are resolved against dir. The result is sorted by path.
func ParseBreakpoints(v any, dir string) ([]FileBreakpoints, error) {
	byPath := make(map[string][]dap.SourceBreakpoint)
	add := func(file string, bp dap.SourceBreakpoint) error {
		if file == "" {
			return fmt.Errorf("breakpoint at line %d: file is required", bp.Line)
		}
		if bp.Line <= 0 {
			return fmt.Errorf("breakpoint in %s: line must be positive", file)
		}
		if !filepath.IsAbs(file) && dir != "" {
			file = filepath.Join(dir, file)
		}
		file = filepath.Clean(file)
		byPath[file] = append(byPath[file], bp)
		return nil
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		for i, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("breakpoint %d: expected a table, got %T", i+1, item)
			}
			file := cast.ToString(firstSet(m, "file", "path"))
			bp := dap.SourceBreakpoint{
				Line:         cast.ToInt(m["line"]),
				Column:       cast.ToInt(m["column"]),
				Condition:    cast.ToString(m["condition"]),
				HitCondition: cast.ToString(firstSet(m, "hit_condition", "hitCondition")),
				LogMessage:   cast.ToString(firstSet(m, "log", "log_message", "logMessage")),
			}
			if err := add(file, bp); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for file, lines := range val {
			ls, err := cast.ToIntSliceE(lines)
			if err != nil {
				return nil, fmt.Errorf("breakpoints for %s: %w", file, err)
			}
			for _, line := range ls {
				if err := add(file, dap.SourceBreakpoint{Line: line}); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, fmt.Errorf("breakpoints: expected a table, got %T", v)
	}

	out := make([]FileBreakpoints, 0, len(byPath))
	for path, bps := range byPath {
		sort.SliceStable(bps, func(i, j int) bool { return bps[i].Line < bps[j].Line })
		out = append(out, FileBreakpoints{Path: path, Breakpoints: bps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func firstSet(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
