package task

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize is the longest output line the processor accepts.
const DefaultBufferSize = 64 * 1024

// OutputStream identifies the source stream.
type OutputStream int

const (
	// OutputStreamStdout is standard output.
	OutputStreamStdout OutputStream = iota
	// OutputStreamStderr is standard error.
	OutputStreamStderr
)

// String returns the stream name.
func (s OutputStream) String() string {
	switch s {
	case OutputStreamStdout:
		return "stdout"
	case OutputStreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// OutputLine represents a single line of output.
type OutputLine struct {
	// Content is the line content (without newline).
	Content string

	// Stream identifies the source (stdout or stderr).
	Stream OutputStream

	// Timestamp is when the line was received.
	Timestamp time.Time

	// LineNumber is the sequential line number across both streams (1-based).
	LineNumber int
}

// OutputProcessor collects the lines of one command's output streams.
// Process may be called concurrently for stdout and stderr.
type OutputProcessor struct {
	lines      []OutputLine
	bufferSize int
	mu         sync.RWMutex
}

// NewOutputProcessor creates a new output processor.
func NewOutputProcessor(bufferSize int) *OutputProcessor {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &OutputProcessor{
		lines:      make([]OutputLine, 0, 256),
		bufferSize: bufferSize,
	}
}

// Process reads r to EOF, recording each line. callback, when non-nil, is
// called for each line as it's received.
func (p *OutputProcessor) Process(r io.Reader, stream OutputStream, callback func(OutputLine)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.bufferSize)

	for scanner.Scan() {
		p.mu.Lock()
		line := OutputLine{
			Content:    strings.TrimRight(scanner.Text(), "\r"),
			Stream:     stream,
			Timestamp:  time.Now(),
			LineNumber: len(p.lines) + 1,
		}
		p.lines = append(p.lines, line)
		p.mu.Unlock()

		if callback != nil {
			callback(line)
		}
	}

	return scanner.Err()
}

// Lines returns all captured output lines.
func (p *OutputProcessor) Lines() []OutputLine {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]OutputLine, len(p.lines))
	copy(result, p.lines)
	return result
}

// StreamLines returns the lines of one stream.
func (p *OutputProcessor) StreamLines(stream OutputStream) []OutputLine {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []OutputLine
	for _, line := range p.lines {
		if line.Stream == stream {
			result = append(result, line)
		}
	}
	return result
}

// Content returns all output joined by newlines.
func (p *OutputProcessor) Content() string {
	return joinLines(p.Lines())
}

func joinLines(lines []OutputLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.Content)
	}
	return b.String()
}
