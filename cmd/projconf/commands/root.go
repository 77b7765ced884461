// Package commands provides the projconf command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/projconf/internal/app"
	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/config/loader"
	"github.com/dshills/projconf/internal/integration/debug"
	"github.com/dshills/projconf/internal/logging"
	"github.com/dshills/projconf/internal/message"
	"github.com/dshills/projconf/internal/project"
)

// Global flags
var (
	logLevel      string
	workDir       string
	contextFile   string
	userConfig    string
	overrides     []string
	noEnv         bool
	forceTerminal bool
	noColor       bool
)

var rootCmd = &cobra.Command{
	Use:   "projconf",
	Short: "Per-project build, run and debug configuration",
	Long: `projconf finds the project root of the current directory (or of --file),
loads its .project.lua, .project.toml or .project.yaml over the built-in
defaults, and runs the project's build, run and debug actions.

Examples:
  projconf config                      # show the effective configuration
  projconf build                       # run build_cmd from the project root
  projconf -f src/main.go debug        # debug the project containing main.go
  projconf --set build_cmd='make -j8' build`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Output: os.Stderr,
			Pretty: true,
		})
		if noColor {
			color.NoColor = true
		}
		if workDir != "" {
			if err := os.Chdir(workDir); err != nil {
				return err
			}
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "WARN", "Log level (DEBUG|INFO|WARN|ERROR)")
	flags.StringVarP(&workDir, "cwd", "C", "", "Change to this directory first")
	flags.StringVarP(&contextFile, "file", "f", "", "File whose project is used (default: working directory)")
	flags.StringVar(&userConfig, "user-config", "", "User-global configuration file below the project file")
	flags.StringArrayVar(&overrides, "set", nil, "Override a setting for this run, e.g. --set indent.shiftwidth=2")
	flags.BoolVar(&noEnv, "no-env", false, "Ignore PROJCONF_* environment overrides")
	flags.BoolVar(&forceTerminal, "terminal", false, "Run build and run commands in the terminal")
	flags.BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(indentCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(pressCmd)
	rootCmd.AddCommand(watchCmd)
}

// SetVersion sets the version reported by --version.
func SetVersion(version, commit, date string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("projconf %s (commit %s, built %s)\n", version, commit, date))
}

// reportedError marks an error already shown on the notification channel.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var r reportedError
	if !errors.As(err, &r) {
		fmt.Fprintf(os.Stderr, "projconf: %v\n", err)
	}
	return 1
}

// session is an App bound to the command line host, loaded for the
// context named by the global flags.
type session struct {
	host *app.CLIHost
	app  *app.App
	sink message.Sink
}

func openSession(ctx context.Context) (*session, error) {
	sink := message.NewConsoleSink(os.Stderr, logging.With("notify"))
	host := app.NewCLIHost(sink)

	var opts []project.Option
	if userConfig != "" {
		opts = append(opts, project.WithUserConfig(userConfig))
	}
	if !noEnv {
		opts = append(opts, project.WithEnv(loader.NewEnvLoader(loader.DefaultEnvPrefix)))
	}
	if len(overrides) > 0 {
		values, err := loader.ParseOverrides(overrides)
		if err != nil {
			return nil, err
		}
		opts = append(opts, project.WithOverrides(values))
	}

	a, err := app.New(app.Options{
		Host:          host,
		LoaderOptions: opts,
		Debugger:      dapDebugger(sink),
		ForceTerminal: forceTerminal,
	})
	if err != nil {
		return nil, err
	}

	if contextFile != "" {
		host.Emit(ctx, app.BufEnter{Path: contextFile})
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			a.Close()
			return nil, err
		}
		host.Emit(ctx, app.DirChanged{Dir: cwd})
	}
	host.Dir = a.Config(ctx).RootDir

	return &session{host: host, app: a, sink: sink}, nil
}

func (s *session) Close() error {
	return s.app.Close()
}

// withSession runs fn with a session for the command's context.
func withSession(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s, args)
	}
}

// dapDebugger runs debug_config tables through Debug Adapter Protocol
// adapters started in the project root.
func dapDebugger(sink message.Sink) app.DebuggerFunc {
	return func(cfg *config.Config) debug.Backend {
		b := debug.NewDAPBackend(cfg.RootDir)
		b.Sink = sink
		b.Output = os.Stdout
		if len(cfg.Env) > 0 {
			b.Env = environ(cfg.Env)
		}
		return b
	}
}

func environ(extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func contextPath() string {
	if contextFile == "" {
		return ""
	}
	abs, err := filepath.Abs(contextFile)
	if err != nil {
		return contextFile
	}
	return abs
}
