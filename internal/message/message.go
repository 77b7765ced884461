// Package message provides the user-visible notification channel.
//
// Every failure in the project pipeline degrades to a safe default and is
// reported exactly once through a Sink. Four severities exist, mirroring an
// editor's message area: errors, warnings, informational messages and
// debug-log entries.
package message

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// Level is the severity of a notification.
type Level int

const (
	// Debug is a debug-log entry, normally hidden from the user.
	Debug Level = iota
	// Info is an informational message.
	Info
	// Warn is a recoverable problem the user should know about.
	Warn
	// Error is a failure of a single action.
	Error
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level.
// Unknown names map to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return Debug
	case "warn", "warning":
		return Warn
	case "error", "err":
		return Error
	default:
		return Info
	}
}

// Sink receives notifications.
type Sink interface {
	Notify(msg string, level Level)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg string, level Level)

// Notify calls f(msg, level).
func (f SinkFunc) Notify(msg string, level Level) {
	f(msg, level)
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(string, Level) {})

// ConsoleSink writes notifications to a terminal, coloured by severity.
// Debug entries are forwarded to the logger instead of the console.
type ConsoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	logger zerolog.Logger
	prefix string

	errColor  *color.Color
	warnColor *color.Color
	infoColor *color.Color
}

// NewConsoleSink creates a console sink writing to out.
// A nil out writes to stderr.
func NewConsoleSink(out io.Writer, logger zerolog.Logger) *ConsoleSink {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleSink{
		out:       out,
		logger:    logger,
		prefix:    "projconf",
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow),
		infoColor: color.New(color.FgCyan),
	}
}

// Notify implements Sink.
func (s *ConsoleSink) Notify(msg string, level Level) {
	if level == Debug {
		s.logger.Debug().Msg(msg)
		return
	}

	var c *color.Color
	switch level {
	case Error:
		c = s.errColor
	case Warn:
		c = s.warnColor
	default:
		c = s.infoColor
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s %s\n", c.Sprintf("[%s %s]", s.prefix, level), msg)
}

// LogSink forwards every notification to a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(msg string, level Level) {
	var ev *zerolog.Event
	switch level {
	case Error:
		ev = s.Logger.Error()
	case Warn:
		ev = s.Logger.Warn()
	case Info:
		ev = s.Logger.Info()
	default:
		ev = s.Logger.Debug()
	}
	ev.Str("source", "notify").Msg(msg)
}

// Entry is a recorded notification.
type Entry struct {
	Message string
	Level   Level
}

// Recorder captures notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Sink.
func (r *Recorder) Notify(msg string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Message: msg, Level: level})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns the number of entries recorded at level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset clears all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Fanout delivers every notification to all sinks in order.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(msg string, level Level) {
	for _, s := range f {
		if s != nil {
			s.Notify(msg, level)
		}
	}
}
