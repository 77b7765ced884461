package files

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tree = []string{
	"a.lua",
	"vendor/b.lua",
	"c.py",
	"lib/util.lua",
	"lib/vendor/dep.lua",
	"lib/.hidden.lua",
	"build/out.lua",
	"docs/guide.md",
	"init.lua.bak",
	"web/app.js",
	"web/b.min.js",
	"gen/x.go",
	"gen/sub/y.go",
}

func writeTree(t *testing.T, fsys afero.Fs, root string) {
	t.Helper()
	for _, name := range tree {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte("x"), 0o644))
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

type enumCase struct {
	name     string
	exts     []string
	excludes []string
	want     []string
}

var enumCases = []enumCase{
	{
		name:     "extension with vendor excluded",
		exts:     []string{"lua"},
		excludes: []string{"**/vendor/**"},
		want:     []string{"a.lua", "build/out.lua", "lib/.hidden.lua", "lib/util.lua"},
	},
	{
		name: "no excludes",
		exts: []string{"py"},
		want: []string{"c.py"},
	},
	{
		name:     "leading dot and several extensions",
		exts:     []string{".py", "md"},
		excludes: []string{"docs/**"},
		want:     []string{"c.py"},
	},
	{
		name:     "several excludes",
		exts:     []string{"lua"},
		excludes: []string{"**/vendor/**", "**/build/**", "lib/**"},
		want:     []string{"a.lua"},
	},
	{
		name:     "no matches",
		exts:     []string{"rs"},
		excludes: []string{"**/vendor/**"},
		want:     nil,
	},
}

func TestWalkEnumerator(t *testing.T) {
	const root = "/proj"
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, root)
	e := NewWalkEnumerator(fsys)

	for _, tt := range enumCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.List(context.Background(), root, tt.exts, tt.excludes)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, rel(t, root, got))
		})
	}
}

func TestFindEnumerator(t *testing.T) {
	if _, err := exec.LookPath("find"); err != nil {
		t.Skip("find not available")
	}
	root := t.TempDir()
	writeTree(t, afero.NewOsFs(), root)
	e := NewFindEnumerator()

	for _, tt := range enumCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.List(context.Background(), root, tt.exts, tt.excludes)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, rel(t, root, got))
		})
	}
}

func TestEnumeratorsAgree(t *testing.T) {
	if _, err := exec.LookPath("find"); err != nil {
		t.Skip("find not available")
	}
	root := t.TempDir()
	writeTree(t, afero.NewOsFs(), root)
	ctx := context.Background()
	enumerators := []Enumerator{NewFindEnumerator(), NewWalkEnumerator(afero.NewOsFs())}

	tests := []struct {
		name     string
		exts     []string
		excludes []string
		want     []string
	}{
		{
			name:     "file pattern stays at the root",
			exts:     []string{"js"},
			excludes: []string{"*.min.js"},
			want:     []string{"web/app.js", "web/b.min.js"},
		},
		{
			name:     "single star does not cross directories",
			exts:     []string{"go"},
			excludes: []string{"**/gen/*.go"},
			want:     []string{"gen/sub/y.go"},
		},
		{
			name:     "matched directory is pruned",
			exts:     []string{"lua"},
			excludes: []string{"lib/*"},
			want:     []string{"a.lua", "build/out.lua", "vendor/b.lua"},
		},
		{
			name:     "literal directory",
			exts:     []string{"lua", "go"},
			excludes: []string{"build", "**/vendor/**", "gen/sub"},
			want:     []string{"a.lua", "gen/x.go", "lib/.hidden.lua", "lib/util.lua"},
		},
		{
			name:     "double star file pattern",
			exts:     []string{"js", "go"},
			excludes: []string{"**/*.min.js", "gen/**/y.go"},
			want:     []string{"gen/x.go", "web/app.js"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, e := range enumerators {
				got, err := e.List(ctx, root, tt.exts, tt.excludes)
				require.NoError(t, err)
				assert.Equal(t, tt.want, rel(t, root, got), "%T", e)
			}
		})
	}

	t.Run("vendor property", func(t *testing.T) {
		// a.lua, vendor/b.lua and c.py yield only a.lua.
		small := t.TempDir()
		for _, name := range []string{"a.lua", "vendor/b.lua", "c.py"} {
			path := filepath.Join(small, filepath.FromSlash(name))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		}
		want := []string{filepath.Join(small, "a.lua")}
		for _, e := range enumerators {
			got, err := e.List(ctx, small, []string{"lua"}, []string{"**/vendor/**"})
			require.NoError(t, err)
			assert.Equal(t, want, got, "%T", e)
		}
	})
}

func TestFindEnumeratorGlobInRoot(t *testing.T) {
	if _, err := exec.LookPath("find"); err != nil {
		t.Skip("find not available")
	}
	root := filepath.Join(t.TempDir(), "we[ird]*?")
	for _, name := range []string{"a.lua", "vendor/b.lua", "c.py", "gen/e.lua"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	excludes := []string{"**/vendor/**", "gen/**"}

	want := []string{filepath.Join(root, "a.lua")}
	for _, e := range []Enumerator{NewFindEnumerator(), NewWalkEnumerator(afero.NewOsFs())} {
		got, err := e.List(context.Background(), root, []string{"lua"}, excludes)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%T", e)
	}
}

func TestListRejectsEmptyExtensions(t *testing.T) {
	for _, e := range []Enumerator{
		&FindEnumerator{Command: "/definitely/not/find"},
		NewWalkEnumerator(afero.NewMemMapFs()),
	} {
		_, err := e.List(context.Background(), "/proj", []string{"", "."}, nil)
		assert.ErrorIs(t, err, ErrNoExtensions, "%T", e)

		_, err = e.List(context.Background(), "/proj", nil, nil)
		assert.ErrorIs(t, err, ErrNoExtensions, "%T", e)
	}
}

func TestListRejectsBadPattern(t *testing.T) {
	_, err := NewWalkEnumerator(afero.NewMemMapFs()).List(context.Background(), "/proj", []string{"go"}, []string{"[oops"})
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestFindEnumeratorStartError(t *testing.T) {
	e := NewFindEnumerator()
	e.Command = filepath.Join(t.TempDir(), "no-such-find")

	got, err := e.List(context.Background(), t.TempDir(), []string{"go"}, nil)
	assert.Nil(t, got)

	var serr *StartError
	require.True(t, errors.As(err, &serr), "error %v is not a StartError", err)
	assert.Equal(t, e.Command, serr.Command)
}

func TestWalkEnumeratorCanceled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/proj")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWalkEnumerator(fsys).List(ctx, "/proj", []string{"lua"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArgs(t *testing.T) {
	got := Args("/p/", []string{"lua", ".vim"}, []string{"**/vendor/**", "build/**", "*.min.js", "gen", "**/gen/*.go"})
	want := []string{
		"/p", "-mindepth", "1",
		"(",
		"-path", "*/vendor",
		"-o", "-path", "/p/build",
		"-o", "-path", "/p/gen",
		")", "-prune", "-o",
		"-type", "f",
		"(", "-name", "*.lua", "-o", "-name", "*.vim", ")",
		"-print",
	}
	assert.Equal(t, want, got)

	got = Args("/tmp/we[ird]", []string{"lua"}, []string{"gen/**", "**/vendor/**"})
	want = []string{
		"/tmp/we[ird]", "-mindepth", "1",
		"(",
		"-path", `/tmp/we\[ird\]/gen`,
		"-o", "-path", "*/vendor",
		")", "-prune", "-o",
		"-type", "f",
		"(", "-name", "*.lua", ")",
		"-print",
	}
	assert.Equal(t, want, got)

	got = Args("/p", []string{"go"}, []string{"*.min.js"})
	assert.Equal(t, []string{"/p", "-mindepth", "1", "-type", "f", "(", "-name", "*.go", ")", "-print"}, got)

	got = Args("/p", []string{"go"}, nil)
	assert.Equal(t, []string{"/p", "-mindepth", "1", "-type", "f", "(", "-name", "*.go", ")", "-print"}, got)
}

func TestExcludedPath(t *testing.T) {
	tests := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{"web/b.min.js", []string{"*.min.js"}, false},
		{"b.min.js", []string{"*.min.js"}, true},
		{"gen/sub/y.go", []string{"**/gen/*.go"}, false},
		{"gen/y.go", []string{"**/gen/*.go"}, true},
		{"lib/sub/x.lua", []string{"lib/*"}, true},
		{"x/vendor/y/z.lua", []string{"**/vendor/**"}, true},
		{"a.lua", nil, false},
	}
	for _, tt := range tests {
		if got := excludedPath(tt.rel, tt.patterns); got != tt.want {
			t.Errorf("excludedPath(%q, %q) = %v, want %v", tt.rel, tt.patterns, got, tt.want)
		}
	}
}
