package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/integration/debug"
	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/message"
)

// Build runs build_cmd.
func (a *App) Build(ctx context.Context) error {
	cfg := a.Config(ctx)
	return a.dispatch(ctx, config.KeyBuildCmd, cfg.BuildCmd, cfg)
}

// Run runs run_cmd.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config(ctx)
	return a.dispatch(ctx, config.KeyRunCmd, cfg.RunCmd, cfg)
}

// Debug starts debug_config: a table is handed to the debug backend and a
// function is called with a handle whose run field starts a session.
func (a *App) Debug(ctx context.Context) error {
	cfg := a.Config(ctx)
	act := cfg.DebugConfig

	switch act.Kind {
	case config.ActionAbsent:
		a.host.Notify(fmt.Sprintf("%s is not configured", config.KeyDebugConfig), message.Warn)
		return nil
	case config.ActionShell:
		return a.fail(config.KeyDebugConfig, fmt.Errorf("%w: %s", ErrUnsupportedAction, act.Kind))
	}

	var backend debug.Backend
	if a.debugger != nil {
		backend = a.debugger(cfg)
	}
	if backend == nil {
		return a.fail(config.KeyDebugConfig, ErrNoDebugBackend)
	}

	if err := a.save(ctx); err != nil {
		return err
	}

	var err error
	if act.Kind == config.ActionCallback {
		err = act.Callback(ctx, debugHandle(backend))
	} else {
		err = backend.Run(ctx, act.Table)
	}
	if err != nil {
		return a.fail("debug", err)
	}
	return nil
}

// debugHandle exposes backend to a debug_config function as a table with a
// run field. Both dap.run(cfg) and dap:run(cfg) work: the last table
// argument is the session configuration.
func debugHandle(backend debug.Backend) map[string]any {
	run := config.Callback(func(ctx context.Context, args ...any) error {
		for i := len(args) - 1; i >= 0; i-- {
			if cfg, ok := args[i].(map[string]any); ok {
				return backend.Run(ctx, cfg)
			}
		}
		return errors.New("run expects a debug configuration table")
	})
	return map[string]any{"name": "dap", "run": run}
}

func (a *App) dispatch(ctx context.Context, key string, act config.Action, cfg *config.Config) error {
	switch act.Kind {
	case config.ActionAbsent:
		a.host.Notify(fmt.Sprintf("%s is not configured", key), message.Warn)
		return nil
	case config.ActionStructured:
		return a.fail(key, fmt.Errorf("%w: %s", ErrUnsupportedAction, act.Kind))
	}

	if err := a.save(ctx); err != nil {
		return err
	}

	if act.Kind == config.ActionCallback {
		if err := act.Callback(ctx); err != nil {
			return a.fail(key, err)
		}
		return nil
	}
	return a.shell(ctx, key, act.Command, cfg)
}

// shell runs a command line from the project root, either in the host's
// terminal or captured into the quickfix list.
func (a *App) shell(ctx context.Context, key, line string, cfg *config.Config) error {
	if _, err := task.Validate(line); err != nil {
		return a.fail(key, err)
	}
	cmd := task.Command{Line: line, Dir: cfg.RootDir, Env: cfg.Env}

	if cfg.BuildInTerminal || a.terminal {
		code, err := a.host.OpenTerminal(ctx, cmd)
		if err != nil {
			return a.fail(key, err)
		}
		if code != 0 {
			return a.fail(key, &task.ExitError{Command: line, Code: code})
		}
		return nil
	}

	res, err := a.runner.Run(ctx, cmd, cfg.Compiler)
	if res != nil {
		a.host.SetQuickfix(line, res)
	}

	var exitErr *task.ExitError
	switch {
	case errors.As(err, &exitErr):
		a.host.Notify(fmt.Sprintf("%s failed with exit code %d (%d problems)", line, exitErr.Code, len(res.Problems)), message.Error)
		return err
	case err != nil:
		return a.fail(key, err)
	}
	a.host.Notify(fmt.Sprintf("%s finished in %s (%d problems)", line, res.Duration().Round(time.Millisecond), len(res.Problems)), message.Info)
	return nil
}

func (a *App) save(ctx context.Context) error {
	if err := a.host.SaveAll(ctx); err != nil {
		return a.fail("save buffers", err)
	}
	return nil
}

// fail reports err on the error channel and returns it.
func (a *App) fail(what string, err error) error {
	a.host.Notify(fmt.Sprintf("%s: %v", what, err), message.Error)
	return err
}
