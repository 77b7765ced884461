package app

import (
	"context"
	"path/filepath"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/input/keymap"
	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/message"
)

// Host is the editor the App drives. Every method is called from the
// goroutine handling the triggering event.
type Host interface {
	message.Sink

	// SaveAll writes every modified buffer.
	SaveAll(ctx context.Context) error

	// AddBuffer makes path addressable without displaying it.
	AddBuffer(path string) error

	// SetIndent applies indentation to the current editing context.
	SetIndent(filetype string, indent config.Indent)

	// OpenTerminal runs cmd attached to an interactive terminal and
	// returns its exit code.
	OpenTerminal(ctx context.Context, cmd task.Command) (int, error)

	// SetQuickfix replaces the quickfix list with the result of a command.
	SetQuickfix(title string, res *task.Result)

	// Exec runs an editor command line, e.g. a keymap's right-hand side.
	Exec(ctx context.Context, command string) error

	// SetKeymaps replaces the keymaps installed by the App.
	SetKeymaps(bindings []keymap.Binding)

	// OnContextChange registers the handler for editing context changes.
	OnContextChange(handler func(ctx context.Context, ev ContextEvent))
}

// ContextEvent is a change of editing context.
type ContextEvent interface {
	// Name is the event name passed to reload observers.
	Name() string

	// Start is the path root discovery starts from.
	Start() string
}

// BufEnter reports that a buffer became current.
type BufEnter struct {
	Path string
}

func (BufEnter) Name() string    { return "BufEnter" }
func (e BufEnter) Start() string { return e.Path }

// DirChanged reports a change of working directory.
type DirChanged struct {
	Dir string
}

func (DirChanged) Name() string    { return "DirChanged" }
func (e DirChanged) Start() string { return e.Dir }

// FileType reports that the filetype of the buffer at Path was determined.
type FileType struct {
	Path     string
	Filetype string
}

func (FileType) Name() string    { return "FileType" }
func (e FileType) Start() string { return e.Path }

// ProjectFileWritten reports that a project file was saved.
type ProjectFileWritten struct {
	Path string
}

func (ProjectFileWritten) Name() string    { return "ProjectFileWritten" }
func (e ProjectFileWritten) Start() string { return filepath.Dir(e.Path) }
