package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/input/keymap"
	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/integration/terminal"
	"github.com/dshills/projconf/internal/message"
)

// ErrNotShellCommand is returned by CLIHost.Exec for editor commands other
// than shell escapes.
var ErrNotShellCommand = errors.New("only shell commands (\"!cmd\") can run outside the editor")

// CLIHost is a Host for the command line. It has no buffers of its own:
// added buffers are listed on Out, quickfix lists are printed, and shell
// escapes run in the terminal.
type CLIHost struct {
	message.Sink

	// Out receives file lists and quickfix output. Defaults to stdout.
	Out io.Writer

	// Terminal runs interactive commands.
	Terminal *terminal.Terminal

	// Dir is the working directory for shell escapes.
	Dir string

	mu       sync.Mutex
	buffers  []string
	indent   config.Indent
	keymaps  []keymap.Binding
	handlers []func(context.Context, ContextEvent)
}

// NewCLIHost creates a CLIHost reporting to sink.
func NewCLIHost(sink message.Sink) *CLIHost {
	return &CLIHost{
		Sink:     sink,
		Out:      os.Stdout,
		Terminal: terminal.New(),
	}
}

// SaveAll implements Host. The command line has no modified buffers.
func (h *CLIHost) SaveAll(context.Context) error {
	return nil
}

// AddBuffer implements Host by listing path.
func (h *CLIHost) AddBuffer(path string) error {
	h.mu.Lock()
	h.buffers = append(h.buffers, path)
	h.mu.Unlock()
	_, err := fmt.Fprintln(h.Out, path)
	return err
}

// Buffers returns the paths added so far.
func (h *CLIHost) Buffers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.buffers...)
}

// SetIndent implements Host.
func (h *CLIHost) SetIndent(_ string, indent config.Indent) {
	h.mu.Lock()
	h.indent = indent
	h.mu.Unlock()
}

// Indent returns the indentation last applied.
func (h *CLIHost) Indent() config.Indent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.indent
}

// OpenTerminal implements Host.
func (h *CLIHost) OpenTerminal(ctx context.Context, cmd task.Command) (int, error) {
	return h.Terminal.Run(ctx, cmd)
}

// SetQuickfix implements Host by printing the command output followed by
// the extracted problems.
func (h *CLIHost) SetQuickfix(title string, res *task.Result) {
	if content := res.Content(); content != "" {
		fmt.Fprintln(h.Out, content)
	}
	if len(res.Problems) == 0 {
		return
	}
	fmt.Fprintf(h.Out, "\n%s: %d problems\n", title, len(res.Problems))
	for _, p := range res.Problems {
		fmt.Fprintln(h.Out, p.String())
	}
}

// Exec implements Host. Only shell escapes, "!cmd" or ":!cmd", can run.
func (h *CLIHost) Exec(ctx context.Context, command string) error {
	line := strings.TrimPrefix(strings.TrimSpace(command), ":")
	if !strings.HasPrefix(line, "!") {
		return fmt.Errorf("%w: %s", ErrNotShellCommand, command)
	}

	code, err := h.Terminal.Run(ctx, task.Command{Line: line[1:], Dir: h.Dir})
	if err != nil {
		return err
	}
	if code != 0 {
		return &task.ExitError{Command: line[1:], Code: code}
	}
	return nil
}

// SetKeymaps implements Host.
func (h *CLIHost) SetKeymaps(bindings []keymap.Binding) {
	h.mu.Lock()
	h.keymaps = bindings
	h.mu.Unlock()
}

// Keymaps returns the keymaps last installed.
func (h *CLIHost) Keymaps() []keymap.Binding {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]keymap.Binding(nil), h.keymaps...)
}

// OnContextChange implements Host.
func (h *CLIHost) OnContextChange(handler func(context.Context, ContextEvent)) {
	h.mu.Lock()
	h.handlers = append(h.handlers, handler)
	h.mu.Unlock()
}

// Emit delivers ev to the registered handlers in order.
func (h *CLIHost) Emit(ctx context.Context, ev ContextEvent) {
	h.mu.Lock()
	handlers := append(([]func(context.Context, ContextEvent))(nil), h.handlers...)
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, ev)
	}
}
