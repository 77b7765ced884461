package config

import (
	"context"
	"fmt"
	"strings"
)

// Callback is a function value supplied by a project file.
// Arguments are host values such as the debug backend handle.
type Callback func(ctx context.Context, args ...any) error

// ActionKind discriminates the Action variant.
type ActionKind int

const (
	// ActionAbsent means no action is configured.
	ActionAbsent ActionKind = iota
	// ActionShell is a shell command string.
	ActionShell
	// ActionCallback is a project-supplied function.
	ActionCallback
	// ActionStructured is a table of settings (e.g. a debug launch config).
	ActionStructured
)

// String returns the kind name.
func (k ActionKind) String() string {
	switch k {
	case ActionAbsent:
		return "absent"
	case ActionShell:
		return "shell"
	case ActionCallback:
		return "function"
	case ActionStructured:
		return "table"
	default:
		return "unknown"
	}
}

// Action is a configured action value.
// Exactly one of Command, Callback or Table is meaningful, selected by Kind.
type Action struct {
	Kind     ActionKind
	Command  string
	Callback Callback
	Table    map[string]any
}

// Shell returns a shell command action.
func Shell(cmd string) Action {
	return Action{Kind: ActionShell, Command: cmd}
}

// Func returns a callback action.
func Func(fn Callback) Action {
	return Action{Kind: ActionCallback, Callback: fn}
}

// Structured returns a table action.
func Structured(table map[string]any) Action {
	return Action{Kind: ActionStructured, Table: table}
}

// IsAbsent reports whether no action is configured.
func (a Action) IsAbsent() bool {
	return a.Kind == ActionAbsent
}

// String describes the action for messages.
func (a Action) String() string {
	switch a.Kind {
	case ActionShell:
		return a.Command
	case ActionCallback:
		return "<function>"
	case ActionStructured:
		return fmt.Sprintf("<table %d keys>", len(a.Table))
	default:
		return "<none>"
	}
}

// ActionOf converts a raw configuration value into an Action.
// nil and blank strings are absent. Unsupported types are an error.
func ActionOf(v any) (Action, error) {
	switch val := v.(type) {
	case nil:
		return Action{}, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return Action{}, nil
		}
		return Shell(val), nil
	case Callback:
		if val == nil {
			return Action{}, nil
		}
		return Func(val), nil
	case func(ctx context.Context, args ...any) error:
		if val == nil {
			return Action{}, nil
		}
		return Func(val), nil
	case map[string]any:
		return Structured(val), nil
	default:
		return Action{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}
