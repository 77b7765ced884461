package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/message"
)

func TestCLIHostAddBuffer(t *testing.T) {
	var out bytes.Buffer
	h := NewCLIHost(message.Discard)
	h.Out = &out

	require.NoError(t, h.AddBuffer("/p/a.go"))
	require.NoError(t, h.AddBuffer("/p/b.go"))

	assert.Equal(t, "/p/a.go\n/p/b.go\n", out.String())
	assert.Equal(t, []string{"/p/a.go", "/p/b.go"}, h.Buffers())
}

func TestCLIHostQuickfix(t *testing.T) {
	var out bytes.Buffer
	h := NewCLIHost(message.Discard)
	h.Out = &out

	h.SetQuickfix("go build", &task.Result{
		Output: []task.OutputLine{{Content: "main.go:3:7: undefined: x"}},
		Problems: []task.Problem{
			{File: "/p/main.go", Line: 3, Column: 7, Severity: task.ProblemSeverityError, Message: "undefined: x"},
		},
	})

	assert.Equal(t, "main.go:3:7: undefined: x\n\ngo build: 1 problems\n/p/main.go:3:7: error: undefined: x\n", out.String())
}

func TestCLIHostExecRejectsEditorCommands(t *testing.T) {
	h := NewCLIHost(message.Discard)
	err := h.Exec(context.Background(), ":write")
	assert.ErrorIs(t, err, ErrNotShellCommand)
}

func TestCLIHostEmit(t *testing.T) {
	h := NewCLIHost(message.Discard)
	var got []string
	h.OnContextChange(func(_ context.Context, ev ContextEvent) {
		got = append(got, ev.Name()+":"+ev.Start())
	})

	h.Emit(context.Background(), BufEnter{Path: "/p/main.go"})
	h.Emit(context.Background(), ProjectFileWritten{Path: "/p/.project.lua"})

	assert.Equal(t, []string{"BufEnter:/p/main.go", "ProjectFileWritten:/p"}, got)
}

func TestDetectFiletype(t *testing.T) {
	tests := map[string]string{
		"cmd/main.go":     "go",
		"app.PY":          "python",
		"Makefile":        "make",
		"build/rules.mk":  "make",
		"README":          "",
		"src/lib.rs":      "rust",
		"/p/.project.lua": "lua",
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectFiletype(path), path)
	}
}
