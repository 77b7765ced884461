package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/projconf/internal/input/keymap"
)

var pressMode string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keymaps of the project",
	Args:  cobra.NoArgs,
	RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODE\tKEYS\tACTION\tSOURCE\tDESCRIPTION")
		for _, b := range s.host.Keymaps() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Mode, b.Keys, b.Target(), b.Source, b.Description)
		}
		return w.Flush()
	}),
}

var pressCmd = &cobra.Command{
	Use:   "press <keys>",
	Short: "Run the action bound to a key sequence",
	Long: `Run the action bound to a key sequence as if it were typed in the editor.

Examples:
  projconf press '<leader>pb'          # the default build binding
  projconf press --mode v '<leader>s'`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		err := s.app.Press(ctx, pressMode, args[0])
		if errors.Is(err, keymap.ErrNoBinding) {
			return err
		}
		return reported(err)
	}),
}

func init() {
	pressCmd.Flags().StringVarP(&pressMode, "mode", "m", "n", "Editor mode of the binding")
}
