package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/projconf/internal/app"
)

var indentCmd = &cobra.Command{
	Use:   "indent [filetype]",
	Short: "Show the indentation for a filetype",
	Long: `Show the indentation applied to a filetype: the indent settings with the
matching indent_by_filetype entry applied. Without an argument the filetype
is taken from --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		path := contextPath()
		ft := app.DetectFiletype(path)
		if len(args) == 1 {
			ft = args[0]
		}
		if ft == "" {
			return errors.New("no filetype given and none detected from --file")
		}

		s.host.Emit(ctx, app.FileType{Path: path, Filetype: ft})
		in := s.host.Indent()
		fmt.Printf("filetype=%s expandtab=%t shiftwidth=%d tabstop=%d softtabstop=%d\n",
			ft, in.ExpandTab, in.ShiftWidth, in.TabStop, in.SoftTabStop)
		return nil
	}),
}
