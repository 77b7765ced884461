package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/projconf/internal/config"
)

var showLayers bool

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration as YAML, or the value of one setting.

Examples:
  projconf config                    # the whole configuration
  projconf config indent.shiftwidth  # one setting and the layer it came from
  projconf config --layers           # the layers merged, lowest first`,
	Args: cobra.MaximumNArgs(1),
	RunE: withSession(runConfig),
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the configuration and show where it came from",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		cfg := s.app.Reload(ctx, contextPath())
		ldr := s.app.Loader()

		file := ldr.ProjectFile()
		if file == "" {
			file = "(none)"
		}
		fmt.Printf("root:         %s\n", ldr.Root())
		fmt.Printf("root_dir:     %s\n", cfg.RootDir)
		fmt.Printf("project file: %s\n", file)
		fmt.Printf("keymaps:      %d\n", len(cfg.Keymaps))
		return nil
	}),
}

func init() {
	configCmd.Flags().BoolVar(&showLayers, "layers", false, "List the merged layers")
}

func runConfig(ctx context.Context, s *session, args []string) error {
	cfg := s.app.Config(ctx)
	ldr := s.app.Loader()

	if showLayers {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LAYER\tSOURCE\tPRIORITY\tPATH\tKEYS")
		for _, l := range ldr.Layers() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", l.Name, l.Source, l.Priority, l.Path, len(l.Data))
		}
		return w.Flush()
	}

	if len(args) == 1 {
		v, ok := cfg.Get(args[0])
		if !ok {
			return fmt.Errorf("%s is not set", args[0])
		}
		out, err := config.DumpValue(v)
		if err != nil {
			return err
		}
		fmt.Printf("# from %s\n%s", ldr.WhichLayer(args[0]), out)
		return nil
	}

	out, err := cfg.Dump()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
