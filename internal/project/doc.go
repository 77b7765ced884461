// Package project resolves the effective configuration for an editing
// context.
//
// A Finder walks up from a file or directory to the nearest ancestor that
// contains a root marker such as .git or go.mod. A Loader reads the project
// file from that root and merges it over the built-in defaults, the user
// configuration, environment overrides and session overrides:
//
//	finder := project.NewFinder(afero.NewOsFs())
//	ldr := project.New(lua.Host{}, project.WithFinder(finder))
//	cfg := ldr.Load(ctx, "src/main.go")
//	fmt.Println(cfg.RootDir, cfg.BuildCmd)
//
// The files subpackage enumerates the project's source files.
package project
