package keymap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/projconf/internal/config"
)

// Builtin actions bound by default.
const (
	BuiltinBuild = "build"
	BuiltinRun   = "run"
	BuiltinDebug = "debug"
	BuiltinFiles = "files"
)

// Binding sources.
const (
	SourceDefault = "default"
	SourceProject = "project"
)

var (
	// ErrNoBinding is returned by Trigger for keys bound to nothing.
	ErrNoBinding = errors.New("no binding")

	// ErrUnsupportedAction is returned by Trigger for an action shape a
	// keymap cannot run.
	ErrUnsupportedAction = errors.New("unsupported keymap action")
)

// Binding maps keys in a mode to an action.
type Binding struct {
	// Mode is the editor mode, e.g. "n".
	Mode string

	// Keys is the normalized left-hand side.
	Keys string

	// Builtin names a built-in action; when set Action is unused.
	Builtin string

	// Action is a project-supplied command string or callback.
	Action config.Action

	Description string

	// Source is SourceDefault or SourceProject.
	Source string
}

// Target describes what the binding runs, for listings.
func (b Binding) Target() string {
	if b.Builtin != "" {
		return "projconf." + b.Builtin
	}
	return b.Action.String()
}

// Dispatcher runs the actions a binding can name.
type Dispatcher interface {
	// Builtin runs a built-in action by name.
	Builtin(ctx context.Context, name string) error

	// Exec runs an editor command line.
	Exec(ctx context.Context, command string) error
}

// DefaultBindings returns the built-in project action bindings.
func DefaultBindings() []Binding {
	return []Binding{
		{Mode: "n", Keys: "<leader>pb", Builtin: BuiltinBuild, Description: "Build project", Source: SourceDefault},
		{Mode: "n", Keys: "<leader>pr", Builtin: BuiltinRun, Description: "Run project", Source: SourceDefault},
		{Mode: "n", Keys: "<leader>pd", Builtin: BuiltinDebug, Description: "Debug project", Source: SourceDefault},
		{Mode: "n", Keys: "<leader>pf", Builtin: BuiltinFiles, Description: "Open project files", Source: SourceDefault},
	}
}

type bindingKey struct {
	mode string
	keys string
}

// Registry holds the default bindings and the bindings of the current
// project. The project set is replaced as a whole on every load.
type Registry struct {
	mu       sync.RWMutex
	defaults map[bindingKey]Binding
	project  map[bindingKey]Binding
}

// NewRegistry creates a registry holding the default bindings.
func NewRegistry() *Registry {
	r := &Registry{
		defaults: make(map[bindingKey]Binding),
		project:  make(map[bindingKey]Binding),
	}
	for _, b := range DefaultBindings() {
		r.defaults[bindingKey{b.Mode, b.Keys}] = b
	}
	return r
}

// Replace installs specs as the project bindings, dropping the previous
// project set. Specs with invalid keys are skipped and reported in the
// returned error. A project binding hides a default on the same keys.
func (r *Registry) Replace(specs []config.KeymapSpec) error {
	project := make(map[bindingKey]Binding, len(specs))
	var errs []error

	for _, spec := range specs {
		keys, err := Normalize(spec.Keys)
		if err != nil {
			errs = append(errs, fmt.Errorf("keymap %q: %w", spec.Keys, err))
			continue
		}
		mode := spec.Mode
		if mode == "" {
			mode = config.DefaultKeymapMode
		}
		project[bindingKey{mode, keys}] = Binding{
			Mode:        mode,
			Keys:        keys,
			Action:      spec.Action,
			Description: spec.Description,
			Source:      SourceProject,
		}
	}

	r.mu.Lock()
	r.project = project
	r.mu.Unlock()

	return errors.Join(errs...)
}

// Bindings returns the effective bindings sorted by mode and keys.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, 0, len(r.defaults)+len(r.project))
	for k, b := range r.defaults {
		if _, hidden := r.project[k]; !hidden {
			out = append(out, b)
		}
	}
	for _, b := range r.project {
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].Keys < out[j].Keys
	})
	return out
}

// Lookup returns the binding for keys in mode.
func (r *Registry) Lookup(mode, keys string) (Binding, bool) {
	norm, err := Normalize(keys)
	if err != nil {
		return Binding{}, false
	}
	k := bindingKey{mode, norm}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.project[k]; ok {
		return b, true
	}
	b, ok := r.defaults[k]
	return b, ok
}

// Trigger runs the binding for keys in mode: a builtin through d, a command
// string through d.Exec and a callback directly.
func (r *Registry) Trigger(ctx context.Context, d Dispatcher, mode, keys string) error {
	b, ok := r.Lookup(mode, keys)
	if !ok {
		return fmt.Errorf("%w for %s in mode %s", ErrNoBinding, keys, mode)
	}
	return Run(ctx, d, b)
}

// Run executes a binding.
func Run(ctx context.Context, d Dispatcher, b Binding) error {
	if b.Builtin != "" {
		return d.Builtin(ctx, b.Builtin)
	}

	switch b.Action.Kind {
	case config.ActionShell:
		return d.Exec(ctx, b.Action.Command)
	case config.ActionCallback:
		return b.Action.Callback(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, b.Action.Kind)
	}
}
