package project

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// DefaultMarkers are the names whose presence marks a project root.
// Order does not affect which directory is found.
var DefaultMarkers = []string{
	".git",
	".hg",
	".svn",
	".project.lua",
	".project.toml",
	".project.yaml",
	".project.yml",
	"Makefile",
	"CMakeLists.txt",
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
}

// Finder discovers project roots by walking up from a starting path.
type Finder struct {
	// Fs is the filesystem searched.
	Fs afero.Fs

	// Markers are the file or directory names that mark a root.
	Markers []string

	// Getwd returns the working directory, the start of an empty path and
	// the result when no marker is found.
	Getwd func() (string, error)
}

// NewFinder creates a Finder over fsys with the default markers.
func NewFinder(fsys afero.Fs) *Finder {
	return &Finder{
		Fs:      fsys,
		Markers: DefaultMarkers,
		Getwd:   os.Getwd,
	}
}

// FindRoot returns the nearest directory, starting at start and walking
// up, that contains any marker. The filesystem root itself is not checked;
// when the walk reaches it, FindRoot returns the working directory.
//
// An empty start means the working directory. A start naming a file begins
// at the file's directory. Relative paths are resolved against the working
// directory. The only error is a failure to read the working directory.
func (f *Finder) FindRoot(start string) (string, error) {
	cwd, err := f.Getwd()
	if err != nil {
		return "", err
	}

	dir := start
	if dir == "" {
		dir = cwd
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	dir = filepath.Clean(dir)

	if info, err := f.Fs.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		if f.hasMarker(dir) {
			return dir, nil
		}
		dir = parent
	}
}

func (f *Finder) hasMarker(dir string) bool {
	for _, marker := range f.Markers {
		if _, err := f.Fs.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
