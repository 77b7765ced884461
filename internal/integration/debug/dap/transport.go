// Package dap is a small Debug Adapter Protocol client: the framing, the
// transports adapters are reached over, and the handful of requests a
// launch-and-watch session needs.
package dap

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// MaxContentLength is the largest message body accepted (10MB).
const MaxContentLength = 10 * 1024 * 1024

var (
	// ErrMissingContentLength is returned for a header block without a length.
	ErrMissingContentLength = errors.New("missing Content-Length header")

	// ErrMessageTooLarge is returned for a body above MaxContentLength.
	ErrMessageTooLarge = errors.New("content-length exceeds maximum")
)

// Transport carries framed DAP messages to and from an adapter.
type Transport interface {
	// Send writes one message.
	Send(msg *Message) error

	// Receive blocks for the next message.
	Receive() (*Message, error)

	// Close releases the transport.
	Close() error
}

// Message is one framed DAP message.
type Message struct {
	ContentLength int
	ContentType   string
	Content       json.RawMessage
}

// StdioTransport talks to an adapter over the stdin and stdout of its
// process.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStdioTransport starts cmd and connects to its standard streams.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes msg to the adapter's stdin.
func (t *StdioTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeMessage(t.stdin, msg)
}

// Receive reads the next message from the adapter's stdout.
func (t *StdioTransport) Receive() (*Message, error) {
	return readMessage(t.reader)
}

// Close closes the pipes and kills the adapter process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	t.stdout.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	// the adapter is killed on purpose, its exit status says nothing
	t.cmd.Wait()
	return nil
}

// SocketTransport talks to an adapter listening on TCP.
type SocketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// DialSocket connects to an adapter at address.
func DialSocket(ctx context.Context, address string) (*SocketTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewSocketTransport(conn), nil
}

// NewSocketTransport wraps an established connection.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes msg to the connection.
func (t *SocketTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeMessage(t.conn, msg)
}

// Receive reads the next message from the connection.
func (t *SocketTransport) Receive() (*Message, error) {
	return readMessage(t.reader)
}

// Close closes the connection.
func (t *SocketTransport) Close() error {
	return t.conn.Close()
}

// RawTransport frames messages over any ReadWriteCloser.
type RawTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewRawTransport wraps rwc.
func NewRawTransport(rwc io.ReadWriteCloser) *RawTransport {
	return &RawTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes msg.
func (t *RawTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeMessage(t.rwc, msg)
}

// Receive reads the next message.
func (t *RawTransport) Receive() (*Message, error) {
	return readMessage(t.reader)
}

// Close closes the underlying stream.
func (t *RawTransport) Close() error {
	return t.rwc.Close()
}

func writeMessage(w io.Writer, msg *Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(msg.Content))
	if msg.ContentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", msg.ContentType)
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	if _, err := w.Write(msg.Content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

func readMessage(r *bufio.Reader) (*Message, error) {
	length := -1
	var contentType string

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header: %q", line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-length":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid content-length: %w", err)
			}
			if n < 0 || n > MaxContentLength {
				return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, n)
			}
			length = n
		case "content-type":
			contentType = value
		}
	}

	if length <= 0 {
		return nil, ErrMissingContentLength
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	return &Message{
		ContentLength: length,
		ContentType:   contentType,
		Content:       content,
	}, nil
}
