// Package app wires the project configuration to an editor host.
//
// An App reloads the effective configuration whenever the host reports a
// change of editing context, mirrors the keymaps of the current project to
// the host, applies indentation for the active filetype, and runs the
// build, run, debug and open-project-files actions.
//
// Actions never fail the host: every failure is reported once through the
// host's notification channel. The error is also returned so that a command
// line front end can set its exit status.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/config/notify"
	"github.com/dshills/projconf/internal/input/keymap"
	"github.com/dshills/projconf/internal/integration/debug"
	"github.com/dshills/projconf/internal/integration/task"
	"github.com/dshills/projconf/internal/logging"
	"github.com/dshills/projconf/internal/message"
	lualib "github.com/dshills/projconf/internal/plugin/lua"
	"github.com/dshills/projconf/internal/project"
	"github.com/dshills/projconf/internal/project/files"
)

// Application errors.
var (
	// ErrNoHost is returned by New without a host.
	ErrNoHost = errors.New("host is required")

	// ErrUnsupportedAction is reported for an action value of a shape the
	// action cannot run, such as a table for build_cmd.
	ErrUnsupportedAction = errors.New("unsupported action type")

	// ErrNoDebugBackend is reported by Debug when no backend is available.
	ErrNoDebugBackend = errors.New("debug backend unavailable")

	// ErrUnknownBuiltin is returned by Builtin for an unknown name.
	ErrUnknownBuiltin = errors.New("unknown builtin action")
)

// DebuggerFunc returns the debug backend for a configuration, or nil when
// none is available.
type DebuggerFunc func(cfg *config.Config) debug.Backend

// Options configures an App.
type Options struct {
	// Host is the editor driven by the App. Required.
	Host Host

	// LoaderOptions are passed to project.New after the App's own.
	LoaderOptions []project.Option

	// Runner executes build and run commands. Defaults to task.NewRunner().
	Runner *task.Runner

	// Enumerator lists project files. Defaults to files.NewFindEnumerator().
	Enumerator files.Enumerator

	// Debugger supplies the debug backend. Nil disables debugging.
	Debugger DebuggerFunc

	// ForceTerminal runs build and run in the terminal regardless of
	// build_in_terminal.
	ForceTerminal bool
}

// App is the project configuration bound to a host.
type App struct {
	host     Host
	loader   *project.Loader
	runner   *task.Runner
	files    files.Enumerator
	debugger DebuggerFunc
	keymaps  *keymap.Registry
	terminal bool
	logger   zerolog.Logger

	mu       sync.Mutex
	filetype string
	subs     []*notify.Subscription
}

// New creates an App and registers it for the host's context changes.
func New(opts Options) (*App, error) {
	if opts.Host == nil {
		return nil, ErrNoHost
	}

	a := &App{
		host:     opts.Host,
		runner:   opts.Runner,
		files:    opts.Enumerator,
		debugger: opts.Debugger,
		keymaps:  keymap.NewRegistry(),
		terminal: opts.ForceTerminal,
		logger:   logging.With("app"),
	}
	if a.runner == nil {
		a.runner = task.NewRunner()
	}
	if a.files == nil {
		a.files = files.NewFindEnumerator()
	}

	loaderOpts := append([]project.Option{project.WithSink(a.host)}, opts.LoaderOptions...)
	a.loader = project.New(lualib.Host{Exec: a.capture}, loaderOpts...)

	n := a.loader.Notifier()
	a.subs = append(a.subs,
		n.Subscribe(a.onReload),
		n.SubscribePath(config.KeyIndent, a.onIndentChange),
		n.SubscribePath(config.KeyIndentByFiletype, a.onIndentChange),
	)

	a.host.SetKeymaps(a.keymaps.Bindings())
	a.host.OnContextChange(a.HandleEvent)
	return a, nil
}

// Loader returns the project loader.
func (a *App) Loader() *project.Loader {
	return a.loader
}

// Keymaps returns the keymap registry.
func (a *App) Keymaps() *keymap.Registry {
	return a.keymaps
}

// Close releases the loader and its subscriptions.
func (a *App) Close() error {
	for _, s := range a.subs {
		s.Unsubscribe()
	}
	return a.loader.Close()
}

// Reload recomputes the configuration for start and makes it current.
func (a *App) Reload(ctx context.Context, start string) *config.Config {
	return a.loader.LoadFor(ctx, start, "reload")
}

// Config returns the current configuration, loading it for the working
// directory on first use.
func (a *App) Config(ctx context.Context) *config.Config {
	if cfg := a.loader.Get(); cfg != nil {
		return cfg
	}
	return a.loader.LoadFor(ctx, "", "load")
}

// HandleEvent reacts to a change of editing context. A filetype event
// applies indentation; every other event reloads the configuration.
func (a *App) HandleEvent(ctx context.Context, ev ContextEvent) {
	a.logger.Debug().Str("event", ev.Name()).Str("start", ev.Start()).Msg("context change")

	ft, ok := ev.(FileType)
	if !ok {
		a.loader.LoadFor(ctx, ev.Start(), ev.Name())
		return
	}

	if a.loader.Get() == nil {
		a.loader.LoadFor(ctx, ev.Start(), ev.Name())
	}
	a.mu.Lock()
	a.filetype = ft.Filetype
	a.mu.Unlock()
	a.ApplyIndent(ctx, ft.Filetype)
}

// ApplyIndent applies the indentation for filetype to the host.
func (a *App) ApplyIndent(ctx context.Context, filetype string) config.Indent {
	indent := a.Config(ctx).IndentFor(filetype)
	a.host.SetIndent(filetype, indent)
	return indent
}

func (a *App) onReload(r notify.Reload) {
	if r.New == nil {
		return
	}
	if err := a.keymaps.Replace(r.New.Keymaps); err != nil {
		a.host.Notify(fmt.Sprintf("keymaps: %v", err), message.Warn)
	}
	a.host.SetKeymaps(a.keymaps.Bindings())
}

func (a *App) onIndentChange(c notify.Change) {
	a.mu.Lock()
	ft := a.filetype
	a.mu.Unlock()
	if ft == "" {
		return
	}
	if cfg := a.loader.Get(); cfg != nil {
		a.host.SetIndent(ft, cfg.IndentFor(ft))
	}
}

// capture backs projconf.exec for project files.
func (a *App) capture(ctx context.Context, dir, line string) (string, int, error) {
	cmd := task.Command{Line: line, Dir: dir}
	if cfg := a.loader.Get(); cfg != nil {
		cmd.Env = cfg.Env
	}
	return a.runner.Capture(ctx, cmd)
}

// Builtin runs a built-in action by name.
func (a *App) Builtin(ctx context.Context, name string) error {
	switch name {
	case keymap.BuiltinBuild:
		return a.Build(ctx)
	case keymap.BuiltinRun:
		return a.Run(ctx)
	case keymap.BuiltinDebug:
		return a.Debug(ctx)
	case keymap.BuiltinFiles:
		_, err := a.OpenProjectFiles(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}
}

// Exec runs an editor command line through the host.
func (a *App) Exec(ctx context.Context, command string) error {
	return a.host.Exec(ctx, command)
}

// Press runs the binding for keys in mode. Failures other than a missing
// binding are reported.
func (a *App) Press(ctx context.Context, mode, keys string) error {
	a.Config(ctx)
	b, ok := a.keymaps.Lookup(mode, keys)
	if !ok {
		return fmt.Errorf("%w for %s in mode %s", keymap.ErrNoBinding, keys, mode)
	}

	err := keymap.Run(ctx, a, b)
	if err != nil && b.Builtin == "" {
		a.fail(b.Keys, err)
	}
	return err
}
