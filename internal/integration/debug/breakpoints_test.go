package debug

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projconf/internal/integration/debug/dap"
)

func TestParseBreakpoints(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []FileBreakpoints
	}{
		{"nil", nil, nil},
		{"empty table", map[string]any{}, []FileBreakpoints{}},
		{
			name: "list",
			in: []any{
				map[string]any{"file": "b.go", "line": int64(9), "log": "x={x}"},
				map[string]any{"path": "a.go", "line": int64(20), "hit_condition": "3"},
				map[string]any{"file": "a.go", "line": int64(4), "condition": "err != nil"},
			},
			want: []FileBreakpoints{
				{Path: "/src/app/a.go", Breakpoints: []dap.SourceBreakpoint{
					{Line: 4, Condition: "err != nil"},
					{Line: 20, HitCondition: "3"},
				}},
				{Path: "/src/app/b.go", Breakpoints: []dap.SourceBreakpoint{
					{Line: 9, LogMessage: "x={x}"},
				}},
			},
		},
		{
			name: "by file",
			in:   map[string]any{"/abs/main.py": []any{int64(12), int64(3)}},
			want: []FileBreakpoints{
				{Path: "/abs/main.py", Breakpoints: []dap.SourceBreakpoint{{Line: 3}, {Line: 12}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBreakpoints(tt.in, "/src/app")
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseBreakpoints() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseBreakpointsErrors(t *testing.T) {
	bad := []any{
		"main.go:10",
		[]any{"main.go"},
		[]any{map[string]any{"line": int64(3)}},
		[]any{map[string]any{"file": "a.go", "line": int64(0)}},
		map[string]any{"a.go": "ten"},
	}
	for _, in := range bad {
		_, err := ParseBreakpoints(in, "/src/app")
		assert.Error(t, err, "input %#v", in)
	}
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "go", DetectType("cmd/main.go"))
	assert.Equal(t, "python", DetectType("app.PY"))
	assert.Equal(t, "lldb", DetectType("src/main.rs"))
	assert.Equal(t, "", DetectType("./bin/server"))
}
