package loader

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct {
	fs afero.Fs
}

// NewYAMLLoader creates a YAML loader reading from fsys.
func NewYAMLLoader(fsys afero.Fs) *YAMLLoader {
	return &YAMLLoader{fs: fsys}
}

// LoadFrom reads configuration from a specific path.
func (l *YAMLLoader) LoadFrom(path string) (map[string]any, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return l.parse(path, data)
}

// LoadFromReader reads configuration from an io.Reader.
func (l *YAMLLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return l.parse("<reader>", data)
}

var yamlLineRE = regexp.MustCompile(`line (\d+)`)

// parse parses YAML data into a map. An empty document is an empty map;
// a document that is not a mapping wraps ErrNotTable.
func (l *YAMLLoader) parse(source string, data []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		if m := yamlLineRE.FindStringSubmatch(err.Error()); m != nil {
			perr.Line, _ = strconv.Atoi(m[1])
		}
		return nil, perr
	}

	switch v := doc.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, &ParseError{
			Path:    source,
			Message: fmt.Sprintf("%v, got %T", ErrNotTable, doc),
			Err:     ErrNotTable,
		}
	}
}
