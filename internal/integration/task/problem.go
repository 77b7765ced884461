package task

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ProblemSeverity indicates the severity of a problem.
type ProblemSeverity string

const (
	// ProblemSeverityError is an error.
	ProblemSeverityError ProblemSeverity = "error"
	// ProblemSeverityWarning is a warning.
	ProblemSeverityWarning ProblemSeverity = "warning"
	// ProblemSeverityInfo is informational.
	ProblemSeverityInfo ProblemSeverity = "info"
)

// Problem is one quickfix entry extracted from command output.
type Problem struct {
	// File is the file path where the problem occurred.
	File string

	// Line is the line number (1-based).
	Line int

	// Column is the column number (1-based, 0 if unknown).
	Column int

	// Severity indicates error, warning, or info.
	Severity ProblemSeverity

	// Code is an optional error code.
	Code string

	// Message is the problem description.
	Message string

	// Source is the tool that reported the problem.
	Source string

	// Text is the output line the problem was read from.
	Text string
}

// String formats the problem as file:line:col: severity: message.
func (p Problem) String() string {
	loc := p.File
	if p.Line > 0 {
		loc += ":" + strconv.Itoa(p.Line)
		if p.Column > 0 {
			loc += ":" + strconv.Itoa(p.Column)
		}
	}
	return fmt.Sprintf("%s: %s: %s", loc, p.Severity, p.Message)
}

// ProblemPattern defines a regex pattern for matching problems.
// Group fields are 1-based capture group indexes; 0 skips the field.
type ProblemPattern struct {
	Pattern  string
	File     int
	Line     int
	Column   int
	Severity int
	Code     int
	Message  int

	// DefaultSeverity is used when Severity is 0.
	DefaultSeverity ProblemSeverity

	// Context marks a line that carries no location itself but supplies
	// file, severity, code or message to the problems that follow it, such
	// as rustc's "error[E0308]: mismatched types" header.
	Context bool
}

// ProblemMatcherDefinition defines a problem matcher.
type ProblemMatcherDefinition struct {
	// Name is the matcher name, "$" followed by the tool.
	Name string

	// Owner identifies the tool (e.g., "go", "gcc").
	Owner string

	// Patterns are tried in order; the first match wins.
	Patterns []ProblemPattern
}

// CompiledMatcher is a compiled problem matcher ready for use.
type CompiledMatcher struct {
	def      ProblemMatcherDefinition
	patterns []*compiledPattern
}

type compiledPattern struct {
	regex   *regexp.Regexp
	pattern ProblemPattern
}

// Name returns the matcher name.
func (m *CompiledMatcher) Name() string {
	return m.def.Name
}

// Match attempts to match a line and extract a problem. A context line
// matches with ctx set.
func (m *CompiledMatcher) Match(line string) (problem Problem, ctx bool, ok bool) {
	for _, p := range m.patterns {
		matches := p.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		group := func(i int) string {
			if i > 0 && i < len(matches) {
				return matches[i]
			}
			return ""
		}
		number := func(i int) int {
			n, _ := strconv.Atoi(group(i))
			return n
		}

		problem = Problem{
			File:    strings.TrimSpace(group(p.pattern.File)),
			Line:    number(p.pattern.Line),
			Column:  number(p.pattern.Column),
			Code:    group(p.pattern.Code),
			Message: strings.TrimSpace(group(p.pattern.Message)),
			Source:  m.def.Owner,
			Text:    line,
		}
		if p.pattern.Severity > 0 {
			problem.Severity = parseSeverity(group(p.pattern.Severity))
		} else {
			problem.Severity = p.pattern.DefaultSeverity
		}
		return problem, p.pattern.Context, true
	}

	return Problem{}, false, false
}

func parseSeverity(s string) ProblemSeverity {
	switch strings.ToLower(s) {
	case "error", "fatal":
		return ProblemSeverityError
	case "warning", "warn":
		return ProblemSeverityWarning
	case "info", "note":
		return ProblemSeverityInfo
	default:
		return ProblemSeverityError
	}
}

// compilerMatchers maps compiler names to matcher names.
var compilerMatchers = map[string][]string{
	"gcc":        {"$gcc"},
	"g++":        {"$gcc"},
	"cc":         {"$gcc"},
	"clang":      {"$gcc"},
	"clang++":    {"$gcc"},
	"c":          {"$gcc"},
	"cpp":        {"$gcc"},
	"go":         {"$go"},
	"go-test":    {"$go-test"},
	"tsc":        {"$tsc"},
	"typescript": {"$tsc"},
	"eslint":     {"$eslint-compact", "$eslint-stylish"},
	"pylint":     {"$pylint"},
	"python":     {"$pylint"},
	"rustc":      {"$rustc"},
	"rust":       {"$rustc"},
	"cargo":      {"$rustc"},
	"generic":    {"$generic"},
}

// ProblemMatcher is an ordered registry of problem matchers.
type ProblemMatcher struct {
	matchers []*CompiledMatcher
	mu       sync.RWMutex
}

// NewProblemMatcher creates a registry holding the built-in matchers.
func NewProblemMatcher() *ProblemMatcher {
	pm := &ProblemMatcher{}
	for _, def := range builtinMatchers {
		if err := pm.Register(def); err != nil {
			panic(err)
		}
	}
	return pm
}

// Register compiles a matcher definition and adds it, replacing any matcher
// of the same name in place.
func (pm *ProblemMatcher) Register(def ProblemMatcherDefinition) error {
	compiled, err := compile(def)
	if err != nil {
		return err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	for i, m := range pm.matchers {
		if m.def.Name == def.Name {
			pm.matchers[i] = compiled
			return nil
		}
	}
	pm.matchers = append(pm.matchers, compiled)
	return nil
}

// GetMatcher returns a compiled matcher by name, or nil.
func (pm *ProblemMatcher) GetMatcher(name string) *CompiledMatcher {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, m := range pm.matchers {
		if m.def.Name == name {
			return m
		}
	}
	return nil
}

// ListMatchers returns the registered matcher names in order.
func (pm *ProblemMatcher) ListMatchers() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, len(pm.matchers))
	for i, m := range pm.matchers {
		names[i] = m.def.Name
	}
	return names
}

// MatchersFor returns the matchers for a compiler setting. The setting may
// be a compiler name ("gcc", "cargo") or a matcher name ("$tsc"). An empty
// or unknown setting selects every matcher.
func (pm *ProblemMatcher) MatchersFor(compiler string) []*CompiledMatcher {
	compiler = strings.ToLower(strings.TrimSpace(compiler))

	var names []string
	switch {
	case strings.HasPrefix(compiler, "$"):
		names = []string{compiler}
	case compiler != "":
		names = compilerMatchers[compiler]
	}

	var out []*CompiledMatcher
	for _, name := range names {
		if m := pm.GetMatcher(name); m != nil {
			out = append(out, m)
		}
	}
	if len(out) > 0 {
		return out
	}

	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return append([]*CompiledMatcher(nil), pm.matchers...)
}

// Extract scans output lines for problems using the matchers selected by
// compiler. Relative file paths are resolved against dir.
func (pm *ProblemMatcher) Extract(lines []OutputLine, compiler, dir string) []Problem {
	matchers := pm.MatchersFor(compiler)

	var problems []Problem
	var pending Problem
	for _, line := range lines {
		for _, m := range matchers {
			p, isContext, ok := m.Match(line.Content)
			if !ok {
				continue
			}
			if isContext {
				pending = p
				break
			}

			if p.File == "" {
				p.File = pending.File
			}
			if p.Message == "" {
				p.Message = pending.Message
				p.Code = pending.Code
				if pending.Severity != "" {
					p.Severity = pending.Severity
				}
			}
			if p.Severity == "" {
				p.Severity = ProblemSeverityError
			}
			if p.File != "" && dir != "" && !filepath.IsAbs(p.File) {
				p.File = filepath.Join(dir, p.File)
			}
			problems = append(problems, p)
			break
		}
	}
	return problems
}

func compile(def ProblemMatcherDefinition) (*CompiledMatcher, error) {
	compiled := &CompiledMatcher{
		def:      def,
		patterns: make([]*compiledPattern, 0, len(def.Patterns)),
	}

	for _, p := range def.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("matcher %s: %w", def.Name, err)
		}
		compiled.patterns = append(compiled.patterns, &compiledPattern{
			regex:   re,
			pattern: p,
		})
	}

	return compiled, nil
}

// builtinMatchers are tried in this order when no compiler is configured;
// specific formats come before the looser go and generic ones.
var builtinMatchers = []ProblemMatcherDefinition{
	// GCC/Clang style: file:line:column: severity: message
	{
		Name:  "$gcc",
		Owner: "gcc",
		Patterns: []ProblemPattern{
			{
				Pattern:  `^(.+?):(\d+):(\d+):\s*(?:fatal )?(error|warning|note):\s*(.+)$`,
				File:     1,
				Line:     2,
				Column:   3,
				Severity: 4,
				Message:  5,
			},
			{
				Pattern:  `^(.+?):(\d+):\s*(?:fatal )?(error|warning|note):\s*(.+)$`,
				File:     1,
				Line:     2,
				Severity: 3,
				Message:  4,
			},
		},
	},

	// TypeScript: file(line,col): severity code: message
	{
		Name:  "$tsc",
		Owner: "typescript",
		Patterns: []ProblemPattern{
			{
				Pattern:  `^(.+)\((\d+),(\d+)\):\s*(error|warning)\s+(\w+):\s*(.+)$`,
				File:     1,
				Line:     2,
				Column:   3,
				Severity: 4,
				Code:     5,
				Message:  6,
			},
		},
	},

	// ESLint compact: file: line N, col M, Error - message
	{
		Name:  "$eslint-compact",
		Owner: "eslint",
		Patterns: []ProblemPattern{
			{
				Pattern:  `^(.+):\s*line\s+(\d+),\s*col\s+(\d+),\s*(Error|Warning)\s*-\s*(.+)$`,
				File:     1,
				Line:     2,
				Column:   3,
				Severity: 4,
				Message:  5,
			},
		},
	},

	// ESLint stylish: a file header followed by "  line:col  severity  message  rule"
	{
		Name:  "$eslint-stylish",
		Owner: "eslint",
		Patterns: []ProblemPattern{
			{
				Pattern: `^(\S.*\.(?:js|jsx|mjs|cjs|ts|tsx|vue))$`,
				File:    1,
				Context: true,
			},
			{
				Pattern:  `^\s+(\d+):(\d+)\s+(error|warning)\s+(.+?)\s{2,}(\S+)$`,
				Line:     1,
				Column:   2,
				Severity: 3,
				Message:  4,
				Code:     5,
			},
		},
	},

	// Pylint: file:line:column: code: message
	{
		Name:  "$pylint",
		Owner: "pylint",
		Patterns: []ProblemPattern{
			{
				Pattern:         `^(.+):(\d+):(\d+):\s*([A-Z]\d{4}):\s*(.+)$`,
				File:            1,
				Line:            2,
				Column:          3,
				Code:            4,
				Message:         5,
				DefaultSeverity: ProblemSeverityWarning,
			},
		},
	},

	// Rustc: "error[E0308]: message" followed by "  --> file:line:col"
	{
		Name:  "$rustc",
		Owner: "rustc",
		Patterns: []ProblemPattern{
			{
				Pattern:  `^(error|warning)(?:\[(\w+)\])?:\s*(.+)$`,
				Severity: 1,
				Code:     2,
				Message:  3,
				Context:  true,
			},
			{
				Pattern: `^\s*-->\s*(.+):(\d+):(\d+)$`,
				File:    1,
				Line:    2,
				Column:  3,
			},
		},
	},

	// Go compiler and vet: file:line:column: message
	{
		Name:  "$go",
		Owner: "go",
		Patterns: []ProblemPattern{
			{
				Pattern:         `^(\S+\.go):(\d+):(\d+):\s*(.+)$`,
				File:            1,
				Line:            2,
				Column:          3,
				Message:         4,
				DefaultSeverity: ProblemSeverityError,
			},
			{
				Pattern:         `^(\S+\.go):(\d+):\s*(.+)$`,
				File:            1,
				Line:            2,
				Message:         3,
				DefaultSeverity: ProblemSeverityError,
			},
		},
	},

	// Go test failures: indented file_test.go:line: message
	{
		Name:  "$go-test",
		Owner: "go-test",
		Patterns: []ProblemPattern{
			{
				Pattern:         `^\s+(\S+_test\.go):(\d+):\s*(.+)$`,
				File:            1,
				Line:            2,
				Message:         3,
				DefaultSeverity: ProblemSeverityError,
			},
		},
	},

	// Generic: file:line: message
	{
		Name:  "$generic",
		Owner: "generic",
		Patterns: []ProblemPattern{
			{
				Pattern:         `^([^\s:]+):(\d+):\s*(.+)$`,
				File:            1,
				Line:            2,
				Message:         3,
				DefaultSeverity: ProblemSeverityError,
			},
		},
	},
}
