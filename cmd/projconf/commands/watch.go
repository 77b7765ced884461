package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/projconf/internal/app"
	"github.com/dshills/projconf/internal/config/loader"
	"github.com/dshills/projconf/internal/config/notify"
	"github.com/dshills/projconf/internal/config/watcher"
	"github.com/dshills/projconf/internal/message"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload whenever the project file changes",
	Long: `Watch the project root and reload the configuration whenever a project
file is written, printing the settings that changed. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: withSession(runWatch),
}

func runWatch(ctx context.Context, s *session, _ []string) error {
	root := s.app.Loader().Root()

	w, err := watcher.New(watcher.WithFilter(func(path string) bool {
		return slices.Contains(loader.ProjectFiles, filepath.Base(path))
	}))
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		return err
	}

	sub := s.app.Loader().Notifier().Subscribe(func(r notify.Reload) {
		if len(r.Changes) == 0 {
			fmt.Println("reloaded, no changes")
			return
		}
		for _, c := range r.Changes {
			fmt.Printf("%-8s %s\n", c.Type, c.Path)
		}
	})
	defer sub.Unsubscribe()

	w.OnChange(func(ev watcher.Event) {
		s.sink.Notify(fmt.Sprintf("%s %s", ev.Op, ev.Path), message.Debug)
		s.host.Emit(ctx, app.ProjectFileWritten{Path: ev.Path})
	})

	s.sink.Notify(fmt.Sprintf("watching %s", root), message.Info)
	err = w.Run(ctx, func(err error) {
		s.sink.Notify(fmt.Sprintf("watch: %v", err), message.Warn)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
