package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the project's build_cmd",
	Long: `Run build_cmd from the project root. A command string is run through the
shell with its output scanned for compiler problems (see the compiler
setting); with build_in_terminal or --terminal it is attached to the
terminal instead. A function in .project.lua is called directly.`,
	Args: cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		return reported(s.app.Build(ctx))
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the project's run_cmd",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		return reported(s.app.Run(ctx))
	}),
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Start the project's debug_config",
	Long: `Start a debug session. A debug_config table names an adapter type
(go, python, lldb, gdb or an adapter table) and is sent to the adapter as the
launch or attach request. A function receives a handle with a run field:

  debug_config = function(dap)
    dap.run({ type = "go", program = "./cmd/server" })
  end`,
	Args: cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		return reported(s.app.Debug(ctx))
	}),
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the project files matching file_extensions",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		_, err := s.app.OpenProjectFiles(ctx)
		return reported(err)
	}),
}
