package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/projconf/internal/logging"
)

// Command is a shell command line to run.
type Command struct {
	// Line is passed to the shell verbatim.
	Line string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds variables added to the inherited environment.
	Env map[string]string
}

// Result is a completed command execution.
type Result struct {
	// ID uniquely identifies the execution.
	ID string

	Command Command

	// ExitCode is the process exit status, -1 if it did not exit normally.
	ExitCode int

	// Output holds stdout and stderr lines in arrival order.
	Output []OutputLine

	// Problems are the diagnostics extracted from Output.
	Problems []Problem

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns how long the command ran.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Content returns the captured output joined by newlines.
func (r *Result) Content() string {
	return joinLines(r.Output)
}

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
}

// StartError reports a command that could not be started.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("cannot start %q: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// DefaultWaitDelay is how long output is still read after the shell exits
// while a process it left behind holds the output open.
const DefaultWaitDelay = 2 * time.Second

// Runner executes shell commands.
type Runner struct {
	shell      string
	shellArgs  []string
	environ    func() []string
	problems   *ProblemMatcher
	bufferSize int
	waitDelay  time.Duration
	logger     zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithShell sets the shell and the arguments placed before the command line.
func WithShell(shell string, args ...string) RunnerOption {
	return func(r *Runner) {
		r.shell = shell
		r.shellArgs = args
	}
}

// WithEnviron sets the base environment. Defaults to os.Environ.
func WithEnviron(environ func() []string) RunnerOption {
	return func(r *Runner) {
		r.environ = environ
	}
}

// WithProblemMatcher sets the problem matcher registry.
func WithProblemMatcher(pm *ProblemMatcher) RunnerOption {
	return func(r *Runner) {
		r.problems = pm
	}
}

// WithBufferSize sets the longest output line accepted.
func WithBufferSize(n int) RunnerOption {
	return func(r *Runner) {
		r.bufferSize = n
	}
}

// WithWaitDelay bounds how long output is read after the shell exits.
// Defaults to DefaultWaitDelay.
func WithWaitDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// DefaultShell returns $SHELL, or "sh" when it is unset.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "sh"
}

// NewRunner creates a Runner using the default shell with "-c".
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		shell:      DefaultShell(),
		shellArgs:  []string{"-c"},
		environ:    os.Environ,
		bufferSize: DefaultBufferSize,
		waitDelay:  DefaultWaitDelay,
		logger:     logging.With("task"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.problems == nil {
		r.problems = NewProblemMatcher()
	}
	return r
}

// Problems returns the runner's problem matcher registry.
func (r *Runner) Problems() *ProblemMatcher {
	return r.problems
}

// Run executes cmd and waits for it to finish, extracting problems with the
// matchers selected by compiler.
//
// A malformed command line returns a *SyntaxError and starts nothing. A
// command that cannot be started returns a *StartError. A non-zero exit
// returns the Result together with an *ExitError.
func (r *Runner) Run(ctx context.Context, cmd Command, compiler string) (*Result, error) {
	res, err := r.execute(ctx, cmd)
	if res != nil {
		res.Problems = r.problems.Extract(res.Output, compiler, cmd.Dir)
	}
	return res, err
}

func (r *Runner) execute(ctx context.Context, cmd Command) (*Result, error) {
	programs, err := Validate(cmd.Line)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:       uuid.NewString(),
		Command:  cmd,
		ExitCode: -1,
	}
	log := r.logger.With().Str("id", res.ID).Logger()

	c := r.command(ctx, cmd)
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	c.Stdout = stdoutW
	c.Stderr = stderrW

	log.Debug().Str("shell", r.shell).Str("command", cmd.Line).Strs("programs", programs).Str("dir", cmd.Dir).Msg("starting command")
	res.StartTime = time.Now()
	if err := c.Start(); err != nil {
		return nil, &StartError{Command: cmd.Line, Err: err}
	}

	out := NewOutputProcessor(r.bufferSize)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := out.Process(stdoutR, OutputStreamStdout, nil); err != nil {
			log.Warn().Err(err).Msg("reading stdout")
		}
		io.Copy(io.Discard, stdoutR)
	}()
	go func() {
		defer wg.Done()
		if err := out.Process(stderrR, OutputStreamStderr, nil); err != nil {
			log.Warn().Err(err).Msg("reading stderr")
		}
		io.Copy(io.Discard, stderrR)
	}()

	// Wait copies the output into the pipes. A background child that keeps
	// them open is cut off WaitDelay after the shell exits.
	waitErr := c.Wait()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()
	if errors.Is(waitErr, osexec.ErrWaitDelay) {
		log.Debug().Msg("output left open by a background process")
		waitErr = nil
	}

	res.EndTime = time.Now()
	res.Output = out.Lines()
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	log.Debug().
		Int("exit", res.ExitCode).
		Int("lines", len(res.Output)).
		Dur("elapsed", res.Duration()).
		Msg("command finished")

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		var exitErr *osexec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, &ExitError{Command: cmd.Line, Code: res.ExitCode}
		}
		return res, waitErr
	}
	return res, nil
}

// Capture runs cmd and returns its combined output with trailing newlines
// removed and its exit code. A non-zero exit is not an error.
func (r *Runner) Capture(ctx context.Context, cmd Command) (string, int, error) {
	res, err := r.execute(ctx, cmd)
	if res == nil {
		return "", -1, err
	}
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res.Content(), res.ExitCode, err
	}
	return res.Content(), res.ExitCode, nil
}

func (r *Runner) command(ctx context.Context, cmd Command) *osexec.Cmd {
	args := append(append([]string(nil), r.shellArgs...), cmd.Line)
	c := osexec.CommandContext(ctx, r.shell, args...)
	c.Dir = cmd.Dir
	c.Env = r.environment(cmd.Env)
	c.WaitDelay = r.waitDelay
	setProcessGroup(c)
	return c
}

// environment returns the base environment with extra appended in key
// order; later entries win.
func (r *Runner) environment(extra map[string]string) []string {
	env := r.environ()
	if len(extra) == 0 {
		return env
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(env)+len(keys))
	out = append(out, env...)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
