package layer

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
	}{
		{
			name:     "nil dst",
			dst:      nil,
			src:      map[string]any{"build_cmd": "make"},
			expected: map[string]any{"build_cmd": "make"},
		},
		{
			name:     "nil src",
			dst:      map[string]any{"build_cmd": "make"},
			src:      nil,
			expected: map[string]any{"build_cmd": "make"},
		},
		{
			name:     "src overrides dst",
			dst:      map[string]any{"compiler": "gcc"},
			src:      map[string]any{"compiler": "go"},
			expected: map[string]any{"compiler": "go"},
		},
		{
			name: "nested merge keeps siblings",
			dst: map[string]any{
				"indent": map[string]any{"expandtab": true, "shiftwidth": 4, "tabstop": 4},
			},
			src: map[string]any{
				"indent": map[string]any{"shiftwidth": 2},
			},
			expected: map[string]any{
				"indent": map[string]any{"expandtab": true, "shiftwidth": 2, "tabstop": 4},
			},
		},
		{
			name: "slices are replaced, not appended",
			dst:  map[string]any{"file_extensions": []any{"go", "mod"}},
			src:  map[string]any{"file_extensions": []any{"lua"}},
			expected: map[string]any{
				"file_extensions": []any{"lua"},
			},
		},
		{
			name: "map replaces scalar",
			dst:  map[string]any{"debug_config": "none"},
			src:  map[string]any{"debug_config": map[string]any{"type": "go"}},
			expected: map[string]any{
				"debug_config": map[string]any{"type": "go"},
			},
		},
		{
			name: "scalar replaces map",
			dst:  map[string]any{"debug_config": map[string]any{"type": "go"}},
			src:  map[string]any{"debug_config": "none"},
			expected: map[string]any{
				"debug_config": "none",
			},
		},
		{
			name: "deep nested merge",
			dst: map[string]any{
				"indent_by_filetype": map[string]any{
					"go": map[string]any{"expandtab": false},
				},
			},
			src: map[string]any{
				"indent_by_filetype": map[string]any{
					"go":  map[string]any{"tabstop": 8},
					"lua": map[string]any{"shiftwidth": 2},
				},
			},
			expected: map[string]any{
				"indent_by_filetype": map[string]any{
					"go":  map[string]any{"expandtab": false, "tabstop": 8},
					"lua": map[string]any{"shiftwidth": 2},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeepMerge(tt.dst, tt.src)
			if diff := cmp.Diff(tt.expected, result); diff != "" {
				t.Errorf("DeepMerge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	defaults := map[string]any{
		"indent":          map[string]any{"shiftwidth": 4, "tabstop": 4},
		"file_extensions": []any{"go"},
	}
	project := map[string]any{
		"indent": map[string]any{"shiftwidth": 2},
	}
	before := Clone(defaults)

	merged := Merge(defaults, project)
	merged["indent"].(map[string]any)["tabstop"] = 99
	merged["file_extensions"].([]any)[0] = "changed"

	if diff := cmp.Diff(before, defaults); diff != "" {
		t.Errorf("defaults mutated (-before +after):\n%s", diff)
	}
	if project["indent"].(map[string]any)["tabstop"] != nil {
		t.Error("project layer mutated")
	}
}

func TestMergeIdempotent(t *testing.T) {
	defaults := map[string]any{
		"build_in_terminal": false,
		"indent":            map[string]any{"expandtab": true, "shiftwidth": 4, "tabstop": 4, "softtabstop": 4},
		"exclude_patterns":  []any{"**/.git/**"},
	}
	project := map[string]any{
		"build_cmd": "make",
		"indent":    map[string]any{"shiftwidth": 2},
		"keymaps":   map[string]any{"<leader>t": "make test"},
	}

	once := Merge(defaults, project)
	twice := Merge(defaults, Merge(project, project))

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merge(defaults, merge(p, p)) != merge(defaults, p):\n%s", diff)
	}
}

func TestGetByPath(t *testing.T) {
	data := map[string]any{
		"indent": map[string]any{"shiftwidth": 2},
		"root":   "/src",
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"indent.shiftwidth", 2, true},
		{"root", "/src", true},
		{"indent.tabstop", nil, false},
		{"root.child", nil, false},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		got, found := GetByPath(data, tt.path)
		if found != tt.found || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GetByPath(%q) = %v, %v; want %v, %v", tt.path, got, found, tt.want, tt.found)
		}
	}

	if _, found := GetByPath(nil, "x"); found {
		t.Error("GetByPath(nil) found a value")
	}
}

func TestSetByPath(t *testing.T) {
	data := map[string]any{"indent": "bogus"}
	SetByPath(data, "indent.shiftwidth", 8)
	SetByPath(data, "build_in_terminal", true)

	want := map[string]any{
		"indent":            map[string]any{"shiftwidth": 8},
		"build_in_terminal": true,
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("SetByPath mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenMap(t *testing.T) {
	data := map[string]any{
		"indent":  map[string]any{"shiftwidth": 2, "tabstop": 4},
		"keymaps": map[string]any{},
		"root":    "/src",
	}
	want := map[string]any{
		"indent.shiftwidth": 2,
		"indent.tabstop":    4,
		"keymaps":           map[string]any{},
		"root":              "/src",
	}
	if diff := cmp.Diff(want, FlattenMap(data)); diff != "" {
		t.Errorf("FlattenMap mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffMaps(t *testing.T) {
	old := map[string]any{
		"build_cmd":        "make",
		"indent":           map[string]any{"shiftwidth": 4},
		"exclude_patterns": []any{"a"},
	}
	new := map[string]any{
		"run_cmd":          "./app",
		"indent":           map[string]any{"shiftwidth": 2},
		"exclude_patterns": []any{"a"},
	}

	added, modified, removed := DiffMaps(old, new)
	if !reflect.DeepEqual(added, []string{"run_cmd"}) {
		t.Errorf("added = %v", added)
	}
	if !reflect.DeepEqual(modified, []string{"indent.shiftwidth"}) {
		t.Errorf("modified = %v", modified)
	}
	if !reflect.DeepEqual(removed, []string{"build_cmd"}) {
		t.Errorf("removed = %v", removed)
	}
}

func TestValuesEqual(t *testing.T) {
	fn := func() {}
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil nil", nil, nil, true},
		{"nil value", nil, 1, false},
		{"ints", 1, 1, true},
		{"different types", int64(1), 1, false},
		{"strings", "a", "b", false},
		{"string slices", []string{"a"}, []string{"a"}, true},
		{"any slices", []any{"a", 1}, []any{"a", 1}, true},
		{"maps", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"map size", map[string]any{"a": 1}, map[string]any{}, false},
		{"functions", fn, fn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ValuesEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}
