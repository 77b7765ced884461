// Package task runs build and run commands for a project.
//
// A Runner executes a shell command line through the user's shell, captures
// stdout and stderr line by line, and extracts compiler diagnostics into a
// quickfix list using problem matchers:
//
//	r := task.NewRunner()
//	res, err := r.Run(ctx, task.Command{Line: "go build ./...", Dir: root}, "go")
//	for _, p := range res.Problems {
//		fmt.Printf("%s:%d:%d: %s\n", p.File, p.Line, p.Column, p.Message)
//	}
//
// Command lines are parsed with mvdan.cc/sh before execution so that a
// malformed command is reported without starting a process.
//
// # Problem Matchers
//
// Built-in matchers cover gcc/clang, go, tsc, eslint, pylint and rustc
// output. The compiler setting selects one by name ("gcc", "go", "rustc",
// "$tsc", ...); an empty or unknown compiler tries every matcher in order.
//
// A non-zero exit status is returned as an *ExitError together with the
// Result, so callers still see the captured output and problems.
package task
