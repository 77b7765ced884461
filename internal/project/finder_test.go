package project

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cwd = "/home/dev"

func newFinder(t *testing.T, files ...string) *Finder {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(cwd, 0o755))
	for _, name := range files {
		if strings.HasSuffix(name, "/") {
			require.NoError(t, fsys.MkdirAll(name, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fsys, name, nil, 0o644))
	}
	f := NewFinder(fsys)
	f.Getwd = func() (string, error) { return cwd, nil }
	return f
}

func TestFindRoot(t *testing.T) {
	f := newFinder(t,
		"/src/outer/.git/",
		"/src/outer/inner/go.mod",
		"/src/outer/inner/pkg/deep/file.go",
		"/src/outer/docs/readme.md",
		"/loose/a/b/c.txt",
		"/home/dev/proj/Makefile",
	)

	tests := []struct {
		name  string
		start string
		want  string
	}{
		{"file in nested project", "/src/outer/inner/pkg/deep/file.go", "/src/outer/inner"},
		{"directory in nested project", "/src/outer/inner/pkg", "/src/outer/inner"},
		{"marker directory itself", "/src/outer/inner", "/src/outer/inner"},
		{"outer project", "/src/outer/docs/readme.md", "/src/outer"},
		{"git directory marker", "/src/outer", "/src/outer"},
		{"nonexistent file", "/src/outer/inner/new.go", "/src/outer/inner"},
		{"no marker falls back to cwd", "/loose/a/b/c.txt", cwd},
		{"relative start", "proj/main.c", "/home/dev/proj"},
		{"empty start uses cwd", "", cwd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.FindRoot(tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindRootIgnoresFilesystemRoot(t *testing.T) {
	f := newFinder(t, "/go.mod", "/tmp/x/y.txt")

	got, err := f.FindRoot("/tmp/x/y.txt")
	require.NoError(t, err)
	assert.Equal(t, cwd, got)
}

func TestFindRootCustomMarkers(t *testing.T) {
	f := newFinder(t, "/ws/.root", "/ws/a/go.mod", "/ws/a/b.go")
	f.Markers = []string{".root"}

	got, err := f.FindRoot("/ws/a/b.go")
	require.NoError(t, err)
	assert.Equal(t, "/ws", got)
}

func TestFindRootGetwdError(t *testing.T) {
	f := newFinder(t)
	boom := errors.New("getwd failed")
	f.Getwd = func() (string, error) { return "", boom }

	_, err := f.FindRoot("/anything")
	assert.ErrorIs(t, err, boom)
}
