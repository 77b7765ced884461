// Package layer provides configuration layers and deep merging.
//
// Each source of project settings (built-in defaults, the user's global
// file, the project file, environment and command-line overrides) is held in its own Layer.
// Layers are merged in ascending priority, so higher layers win at every
// nesting level while untouched sibling keys survive.
package layer

import (
	"time"
)

// Layer represents a single configuration layer.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "project").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Source indicates where this layer was loaded from.
	Source Source

	// Path is the file path (if loaded from file).
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any

	// LoadedAt is when the layer was read.
	LoadedAt time.Time
}

// New creates an empty layer with the standard priority for source.
func New(name string, source Source) *Layer {
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: DefaultPriority(source),
		Data:     make(map[string]any),
		LoadedAt: time.Now(),
	}
}

// NewWithData creates a layer holding data.
// A nil data map is replaced with an empty one.
func NewWithData(name string, source Source, data map[string]any) *Layer {
	l := New(name, source)
	if data != nil {
		l.Data = data
	}
	return l
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	return &Layer{
		Name:     l.Name,
		Priority: l.Priority,
		Source:   l.Source,
		Path:     l.Path,
		Data:     cloneMap(l.Data),
		LoadedAt: l.LoadedAt,
	}
}

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin represents the built-in defaults.
	SourceBuiltin Source = iota
	// SourceUser represents the user's global configuration file.
	SourceUser
	// SourceProject represents the project file found in the project root.
	SourceProject
	// SourceEnv represents PROJCONF_* environment overrides.
	SourceEnv
	// SourceSession represents in-memory overrides (command-line --set).
	SourceSession
)

// Standard priority levels. Higher values override lower values.
const (
	PriorityBuiltin = 0
	PriorityUser    = 100
	PriorityProject = 200
	PriorityEnv     = 300
	PrioritySession = 1000
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceUser:
		return "user"
	case SourceProject:
		return "project"
	case SourceEnv:
		return "env"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}

// DefaultPriority returns the default priority for a given source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceUser:
		return PriorityUser
	case SourceProject:
		return PriorityProject
	case SourceEnv:
		return PriorityEnv
	case SourceSession:
		return PrioritySession
	default:
		return PriorityBuiltin
	}
}

// cloneMap creates a deep copy of a map.
func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

// cloneSlice creates a deep copy of a slice.
func cloneSlice(src []any) []any {
	if src == nil {
		return nil
	}

	dst := make([]any, len(src))
	for i, val := range src {
		dst[i] = cloneValue(val)
	}
	return dst
}

// Clone returns a deep copy of a configuration map.
// Maps and []any slices are copied; leaf values (including callbacks) are shared.
func Clone(src map[string]any) map[string]any {
	return cloneMap(src)
}
