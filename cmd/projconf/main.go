// Package main is the entry point for projconf.
package main

import (
	"os"

	"github.com/dshills/projconf/cmd/projconf/commands"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	os.Exit(commands.Execute())
}
