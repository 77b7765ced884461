package terminal

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/creack/pty"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/logging"
)

// Mode selects how a command is attached to the user.
type Mode int

const (
	// ModeAuto uses a pseudo-terminal when the input is a terminal.
	ModeAuto Mode = iota
	// ModePTY always uses a pseudo-terminal.
	ModePTY
	// ModePlain always connects the standard streams directly.
	ModePlain
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModePTY:
		return "pty"
	case ModePlain:
		return "plain"
	default:
		return "unknown"
	}
}

// Terminal runs commands attached to the user's terminal.
type Terminal struct {
	// Shell runs the command line with "-c". Defaults to task.DefaultShell.
	Shell string

	In  *os.File
	Out io.Writer
	Err io.Writer

	Mode Mode

	// Environ is the base environment. Defaults to os.Environ.
	Environ func() []string

	logger zerolog.Logger
}

// New creates a Terminal on the process's standard streams.
func New() *Terminal {
	return &Terminal{
		Shell:   task.DefaultShell(),
		In:      os.Stdin,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Environ: os.Environ,
		logger:  logging.With("terminal"),
	}
}

// Run executes cmd and blocks until it exits, returning its exit code. A
// non-zero exit is not an error. The command line is validated first; a
// malformed line starts nothing.
func (t *Terminal) Run(ctx context.Context, cmd task.Command) (int, error) {
	if _, err := task.Validate(cmd.Line); err != nil {
		return -1, err
	}

	c := exec.CommandContext(ctx, t.shell(), "-c", cmd.Line)
	c.Dir = cmd.Dir
	c.Env = t.environment(cmd.Env)

	var err error
	if t.usePTY() {
		t.logger.Debug().Str("command", cmd.Line).Msg("running in pty")
		err = t.runPTY(c)
	} else {
		t.logger.Debug().Str("command", cmd.Line).Msg("running attached")
		err = t.runPlain(c)
	}

	var startErr *task.StartError
	if errors.As(err, &startErr) {
		return -1, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if c.ProcessState == nil {
		return -1, err
	}
	return c.ProcessState.ExitCode(), nil
}

func (t *Terminal) usePTY() bool {
	switch t.Mode {
	case ModePTY:
		return true
	case ModePlain:
		return false
	default:
		return t.In != nil && term.IsTerminal(int(t.In.Fd()))
	}
}

func (t *Terminal) runPlain(c *exec.Cmd) error {
	if t.In != nil {
		c.Stdin = t.In
	}
	c.Stdout = t.Out
	c.Stderr = t.Err
	if err := c.Start(); err != nil {
		return &task.StartError{Command: c.String(), Err: err}
	}
	return c.Wait()
}

func (t *Terminal) runPTY(c *exec.Cmd) error {
	interactive := t.In != nil && term.IsTerminal(int(t.In.Fd()))

	var size *pty.Winsize
	if interactive {
		if s, err := pty.GetsizeFull(t.In); err == nil {
			size = s
		}
	}

	ptmx, err := pty.StartWithSize(c, size)
	if err != nil {
		if errors.Is(err, pty.ErrUnsupported) {
			err = ErrPTYNotSupported
		}
		return &task.StartError{Command: c.String(), Err: err}
	}
	defer ptmx.Close()

	if interactive {
		fd := int(t.In.Fd())
		if state, err := term.MakeRaw(fd); err == nil {
			defer func() { _ = term.Restore(fd, state) }()
		} else {
			t.logger.Warn().Err(err).Msg("cannot switch terminal to raw mode")
		}
		stop := watchResize(t.In, ptmx)
		defer stop()
	}

	if t.In != nil {
		go func() { _, _ = io.Copy(ptmx, t.In) }()
	}
	// Reading the master fails with EIO once the child side is closed.
	_, _ = io.Copy(t.Out, ptmx)

	return c.Wait()
}

func (t *Terminal) shell() string {
	if t.Shell != "" {
		return t.Shell
	}
	return task.DefaultShell()
}

func (t *Terminal) environment(extra map[string]string) []string {
	environ := t.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := environ()

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
