package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/message"
	"github.com/dshills/projconf/internal/project/files"
)

// OpenProjectFiles adds every project file matching file_extensions and
// not excluded by exclude_patterns to the host's buffer list, without
// displaying any of them. It returns the number of files added.
func (a *App) OpenProjectFiles(ctx context.Context) (int, error) {
	cfg := a.Config(ctx)
	if len(cfg.FileExtensions) == 0 {
		a.host.Notify(fmt.Sprintf("%s is empty, nothing to open", config.KeyFileExtensions), message.Warn)
		return 0, nil
	}

	paths, err := a.files.List(ctx, cfg.RootDir, cfg.FileExtensions, cfg.ExcludePatterns)
	if errors.Is(err, files.ErrNoExtensions) {
		a.host.Notify(fmt.Sprintf("%s is empty, nothing to open", config.KeyFileExtensions), message.Warn)
		return 0, nil
	}
	if err != nil {
		return 0, a.fail("open project files", err)
	}

	if len(paths) == 0 {
		a.host.Notify(fmt.Sprintf("no project files found in %s", cfg.RootDir), message.Info)
		return 0, nil
	}

	added := 0
	for _, p := range paths {
		if err := a.host.AddBuffer(p); err != nil {
			a.logger.Debug().Err(err).Str("path", p).Msg("add buffer")
			continue
		}
		added++
	}
	a.host.Notify(fmt.Sprintf("added %d project files", added), message.Info)
	return added, nil
}
