// Package terminal runs a command in an interactive terminal surface.
//
// When standard input is a terminal, the command gets its own
// pseudo-terminal (github.com/creack/pty) sized like the controlling
// terminal, which is switched to raw mode for the duration
// (golang.org/x/term) and resized along with it. Otherwise the command
// inherits the standard streams directly.
//
//	term := terminal.New()
//	code, err := term.Run(ctx, task.Command{Line: "make run", Dir: root})
package terminal
