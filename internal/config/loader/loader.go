// Package loader reads project configuration files.
//
// A project file lives in the project root under one of the names in
// ProjectFiles; the first that exists wins. Lua files are evaluated in a
// sandboxed state, TOML and YAML files are parsed as plain data. A missing
// file is not an error: loaders return nil, nil.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	lualib "github.com/dshills/projconf/internal/plugin/lua"
)

// ProjectFiles lists the project file names in lookup order.
var ProjectFiles = []string{
	".project.lua",
	".project.toml",
	".project.yaml",
	".project.yml",
}

// Errors returned by loaders.
var (
	// ErrNotTable is wrapped by ParseError when a project file evaluates to
	// something other than a table of settings.
	ErrNotTable = errors.New("project file must return a table")

	// ErrUnknownFormat is returned for a file extension no loader handles.
	ErrUnknownFormat = errors.New("unknown configuration format")
)

// FileLoader reads configuration from a file.
type FileLoader interface {
	// LoadFrom reads configuration from path.
	// Returns nil, nil if the file doesn't exist.
	LoadFrom(path string) (map[string]any, error)
}

// DefaultFS returns the operating system filesystem.
func DefaultFS() afero.Fs {
	return afero.NewOsFs()
}

// FindProjectFile returns the first project file present in root.
func FindProjectFile(fsys afero.Fs, root string) (string, bool) {
	for _, name := range ProjectFiles {
		path := filepath.Join(root, name)
		if info, err := fsys.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// IsProjectFile reports whether path names a project file.
func IsProjectFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range ProjectFiles {
		if base == name {
			return true
		}
	}
	return false
}

// Loader loads configuration files of every supported format.
// It owns the Lua state backing callbacks from the last Lua file it loaded;
// Close releases it.
type Loader struct {
	fs   afero.Fs
	lua  *LuaLoader
	toml *TOMLLoader
	yaml *YAMLLoader
}

// New creates a Loader reading from fsys. host supplies the services of the
// projconf Lua module; its Root is set per file.
func New(fsys afero.Fs, host lualib.Host) *Loader {
	return &Loader{
		fs:   fsys,
		lua:  NewLuaLoader(fsys, host),
		toml: NewTOMLLoader(fsys),
		yaml: NewYAMLLoader(fsys),
	}
}

// LoadProject loads the project file from root. It returns the settings and
// the path of the file used. With no project file it returns an empty map
// and an empty path.
func (l *Loader) LoadProject(ctx context.Context, root string) (map[string]any, string, error) {
	path, ok := FindProjectFile(l.fs, root)
	if !ok {
		l.lua.Release()
		return map[string]any{}, "", nil
	}

	if !strings.EqualFold(filepath.Ext(path), ".lua") {
		l.lua.Release()
	}

	data, err := l.LoadFile(ctx, path)
	if err != nil {
		return nil, path, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, path, nil
}

// LoadFile loads a single file, choosing the format by extension.
// Returns nil, nil if the file doesn't exist.
func (l *Loader) LoadFile(ctx context.Context, path string) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return l.lua.LoadContext(ctx, path)
	case ".toml":
		return l.toml.LoadFrom(path)
	case ".yaml", ".yml":
		return l.yaml.LoadFrom(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Close releases the Lua state held by the loader.
func (l *Loader) Close() error {
	return l.lua.Release()
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
