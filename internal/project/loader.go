package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/config/layer"
	"github.com/dshills/projconf/internal/config/loader"
	"github.com/dshills/projconf/internal/config/notify"
	"github.com/dshills/projconf/internal/logging"
	"github.com/dshills/projconf/internal/message"
	lualib "github.com/dshills/projconf/internal/plugin/lua"
)

// Layer names used by the Loader.
const (
	LayerDefaults = "defaults"
	LayerUser     = "user"
	LayerProject  = "project"
	LayerEnv      = "env"
	LayerSession  = "session"
)

// Loader discovers the project root, loads the project file and merges it
// over the defaults. It owns the current EffectiveConfig; callers read it
// with Get and replace it only through Load.
type Loader struct {
	fs       afero.Fs
	finder   *Finder
	sink     message.Sink
	logger   zerolog.Logger
	notifier *notify.Notifier

	userConfig string
	env        *loader.EnvLoader
	session    map[string]any

	project *loader.Loader
	user    *loader.Loader
	layers  *layer.Manager

	mu      sync.RWMutex
	current *config.Config
	root    string
	file    string
}

// Option configures a Loader.
type Option func(*Loader)

// WithFs sets the filesystem used for discovery and loading.
func WithFs(fsys afero.Fs) Option {
	return func(l *Loader) {
		l.fs = fsys
	}
}

// WithFinder replaces the root finder.
func WithFinder(f *Finder) Option {
	return func(l *Loader) {
		l.finder = f
	}
}

// WithSink sets the notification channel.
func WithSink(sink message.Sink) Option {
	return func(l *Loader) {
		l.sink = sink
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithNotifier sets the notifier told about every reload.
func WithNotifier(n *notify.Notifier) Option {
	return func(l *Loader) {
		l.notifier = n
	}
}

// WithUserConfig adds a user-global configuration file below the project
// layer. A missing file is ignored.
func WithUserConfig(path string) Option {
	return func(l *Loader) {
		l.userConfig = path
	}
}

// WithEnv adds environment overrides above the project layer.
func WithEnv(env *loader.EnvLoader) Option {
	return func(l *Loader) {
		l.env = env
	}
}

// WithOverrides adds session overrides above every other layer.
func WithOverrides(overrides map[string]any) Option {
	return func(l *Loader) {
		l.session = overrides
	}
}

// New creates a Loader. host supplies the projconf Lua module services;
// its Notify defaults to the loader's sink.
func New(host lualib.Host, opts ...Option) *Loader {
	l := &Loader{
		fs:       loader.DefaultFS(),
		sink:     message.Discard,
		logger:   logging.With("project"),
		notifier: notify.New(),
		layers:   layer.NewManager(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.finder == nil {
		l.finder = NewFinder(l.fs)
	}
	if host.Notify == nil {
		host.Notify = l.sink.Notify
	}
	if host.Getenv == nil {
		host.Getenv = os.Getenv
	}

	l.project = loader.New(l.fs, host)
	l.user = loader.New(l.fs, host)
	return l
}

// Load recomputes the EffectiveConfig for the context at start (a file or
// directory path; empty means the working directory) and makes it current.
//
// Load never fails: a project file that cannot be parsed is reported once
// on the notification channel and contributes no overrides.
func (l *Loader) Load(ctx context.Context, start string) *config.Config {
	return l.LoadFor(ctx, start, "load")
}

// LoadFor is Load with the name of the triggering event, passed on to
// reload observers.
func (l *Loader) LoadFor(ctx context.Context, start, source string) *config.Config {
	root, err := l.finder.FindRoot(start)
	if err != nil {
		l.sink.Notify(fmt.Sprintf("cannot determine working directory: %v", err), message.Error)
		root = filepath.Clean(start)
		if start == "" {
			root = string(filepath.Separator)
		}
	}
	l.logger.Debug().Str("start", start).Str("root", root).Msg("project root")

	l.layers.Set(layer.NewWithData(LayerDefaults, layer.SourceBuiltin, config.Defaults()))
	l.loadUser(ctx)
	file := l.loadProject(ctx, root)
	l.loadEnv()
	if l.session != nil {
		l.layers.Set(layer.NewWithData(LayerSession, layer.SourceSession, layer.Clone(l.session)))
	}

	merged := l.layers.Merge()
	rootDir := resolveRootDir(root, merged[config.KeyRootDir])
	merged[config.KeyRootDir] = rootDir
	l.applyEnvFile(merged, rootDir)

	cfg, err := config.Decode(merged)
	if err != nil {
		l.sink.Notify(fmt.Sprintf("invalid project settings: %v", joinLines(err)), message.Warn)
	}

	l.mu.Lock()
	old := l.current
	l.current = cfg
	l.root = root
	l.file = file
	l.mu.Unlock()

	r := l.notifier.NotifyReload(old, cfg, source)
	if len(r.Changes) > 0 {
		paths := make([]string, len(r.Changes))
		for i, c := range r.Changes {
			paths[i] = c.Type.String() + " " + c.Path
		}
		l.logger.Debug().Str("source", source).Strs("changes", paths).Msg("config reloaded")
	}

	return cfg
}

// loadProject sets the project layer from root and returns the file used.
func (l *Loader) loadProject(ctx context.Context, root string) string {
	data, path, err := l.project.LoadProject(ctx, root)
	if err != nil {
		l.sink.Notify(fmt.Sprintf("project config: %v", err), message.Error)
		data = map[string]any{}
	}

	ly := layer.NewWithData(LayerProject, layer.SourceProject, data)
	ly.Path = path
	l.layers.Set(ly)

	if path != "" {
		l.logger.Debug().Str("path", path).Int("keys", len(data)).Msg("project file loaded")
	}
	return path
}

func (l *Loader) loadUser(ctx context.Context) {
	if l.userConfig == "" {
		return
	}

	data, err := l.user.LoadFile(ctx, l.userConfig)
	if err != nil {
		l.sink.Notify(fmt.Sprintf("user config: %v", err), message.Error)
		data = nil
	}
	ly := layer.NewWithData(LayerUser, layer.SourceUser, data)
	ly.Path = l.userConfig
	l.layers.Set(ly)
}

func (l *Loader) loadEnv() {
	if l.env == nil {
		return
	}

	data, err := l.env.Load()
	if err != nil {
		l.sink.Notify(fmt.Sprintf("environment overrides: %v", err), message.Error)
		return
	}
	l.layers.Set(layer.NewWithData(LayerEnv, layer.SourceEnv, data))
}

// applyEnvFile merges the variables of env_file under the explicit env
// table, which wins on conflicts.
func (l *Loader) applyEnvFile(merged map[string]any, rootDir string) {
	name := cast.ToString(merged[config.KeyEnvFile])
	if name == "" {
		return
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}

	vars, err := loader.LoadDotenv(l.fs, path)
	if err != nil {
		l.sink.Notify(fmt.Sprintf("env file: %v", err), message.Error)
		return
	}
	if vars == nil {
		l.sink.Notify(fmt.Sprintf("env file %s not found", path), message.Warn)
		return
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}
	if explicit, ok := merged[config.KeyEnv].(map[string]any); ok {
		for k, v := range explicit {
			env[k] = v
		}
	}
	merged[config.KeyEnv] = env
}

// Get returns the current EffectiveConfig, or nil before the first Load.
func (l *Loader) Get() *config.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Root returns the project root found by the last Load.
func (l *Loader) Root() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.root
}

// ProjectFile returns the project file used by the last Load, or "".
func (l *Loader) ProjectFile() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.file
}

// Layers returns the layers of the last Load, lowest priority first.
func (l *Loader) Layers() []*layer.Layer {
	return l.layers.Layers()
}

// WhichLayer returns the name of the layer that supplies path.
func (l *Loader) WhichLayer(path string) string {
	return l.layers.WhichLayer(path)
}

// Notifier returns the notifier told about every reload.
func (l *Loader) Notifier() *notify.Notifier {
	return l.notifier
}

// Close releases the Lua states backing callbacks in the current config.
func (l *Loader) Close() error {
	return errors.Join(l.project.Close(), l.user.Close())
}

// resolveRootDir returns the configured root_dir resolved against root, or
// root itself when none is configured.
func resolveRootDir(root string, configured any) string {
	dir := strings.TrimSpace(cast.ToString(configured))
	if dir == "" {
		return root
	}
	if strings.HasPrefix(dir, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Clean(dir)
}

func joinLines(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}
