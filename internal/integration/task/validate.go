package task

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyCommand is returned for a blank command line.
var ErrEmptyCommand = errors.New("empty command")

// SyntaxError reports a command line the shell could not parse.
type SyntaxError struct {
	Command string

	// Incomplete is set when the line ends inside a quote or compound
	// command.
	Incomplete bool

	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid command %q: %v", e.Command, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Validate parses a command line as bash and returns the names of the
// programs it calls, in order. It executes nothing.
func Validate(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyCommand
	}

	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
	file, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, &SyntaxError{Command: line, Incomplete: syntax.IsIncomplete(err), Err: err}
	}

	var programs []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			if name := literal(call.Args[0]); name != "" {
				programs = append(programs, name)
			}
		}
		return true
	})
	return programs, nil
}

// literal returns the literal text of a word, or "" if it has expansions.
func literal(word *syntax.Word) string {
	var b strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				lit, ok := qp.(*syntax.Lit)
				if !ok {
					return ""
				}
				b.WriteString(lit.Value)
			}
		default:
			return ""
		}
	}
	return b.String()
}
