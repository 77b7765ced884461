package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/dshills/projconf/internal/integration/debug/dap"
	"github.com/dshills/projconf/internal/logging"
	"github.com/dshills/projconf/internal/message"
)

var (
	// ErrUnknownAdapter is returned when no adapter serves the configured type.
	ErrUnknownAdapter = errors.New("unknown debug adapter type")

	// ErrInvalidRequest is returned for a request other than launch or attach.
	ErrInvalidRequest = errors.New("request must be launch or attach")

	// ErrAdapterExited is returned when the adapter goes away mid-session.
	ErrAdapterExited = errors.New("debug adapter exited")
)

// ExitError reports a debuggee that exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("debuggee exited with code %d", e.Code)
}

// Backend runs a debug session described by a debug_config table.
type Backend interface {
	Run(ctx context.Context, cfg map[string]any) error
}

// Keys of debug_config consumed by DAPBackend rather than passed to the
// adapter.
const (
	KeyType        = "type"
	KeyRequest     = "request"
	KeyBreakpoints = "breakpoints"
	KeyAdapter     = "adapter"
	KeyProgram     = "program"
	KeyCwd         = "cwd"
)

// DAPBackend runs sessions through Debug Adapter Protocol adapters.
type DAPBackend struct {
	// Adapters maps debug_config.type to an adapter.
	Adapters map[string]Adapter

	// Dir is the adapter working directory and the base of relative
	// breakpoint files, normally the project root.
	Dir string

	// Env is the adapter environment; nil inherits the process environment.
	Env []string

	// Output receives the debuggee's output events and the adapter's stderr.
	Output io.Writer

	// Sink receives session status messages.
	Sink message.Sink

	// StartTimeout bounds how long a socket adapter may take to listen.
	StartTimeout time.Duration

	// Connect starts an adapter; tests replace it.
	Connect func(ctx context.Context, a Adapter) (dap.Transport, error)

	logger zerolog.Logger
}

// NewDAPBackend creates a backend with the built-in adapters.
func NewDAPBackend(dir string) *DAPBackend {
	b := &DAPBackend{
		Adapters:     DefaultAdapters(),
		Dir:          dir,
		Output:       os.Stdout,
		Sink:         message.Discard,
		StartTimeout: 10 * time.Second,
		logger:       logging.With("debug"),
	}
	b.Connect = b.start
	return b
}

// Run starts the adapter for cfg, configures breakpoints, launches or
// attaches, and returns when the session terminates or ctx is done. On
// cancellation the debuggee is terminated.
func (b *DAPBackend) Run(ctx context.Context, cfg map[string]any) error {
	adapter, err := b.resolve(cfg)
	if err != nil {
		return err
	}

	request := strings.ToLower(cast.ToString(cfg[KeyRequest]))
	if request == "" {
		request = "launch"
	}
	if request != "launch" && request != "attach" {
		return fmt.Errorf("%w: %q", ErrInvalidRequest, request)
	}

	breakpoints, err := ParseBreakpoints(cfg[KeyBreakpoints], b.Dir)
	if err != nil {
		return err
	}

	transport, err := b.Connect(ctx, adapter)
	if err != nil {
		return fmt.Errorf("start %s adapter: %w", adapter.ID, err)
	}
	client := dap.NewClient(transport)
	defer client.Close()

	s := &session{backend: b, client: client, ctx: ctx}
	s.watch()

	b.logger.Debug().Str("adapter", adapter.ID).Str("request", request).Int("breakpoint_files", len(breakpoints)).Msg("debug session starting")

	caps, err := client.Initialize(ctx, dap.InitializeRequestArguments{
		ClientID:        "projconf",
		ClientName:      "projconf",
		AdapterID:       adapter.ID,
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Some adapters answer launch only after configurationDone, so the
	// request runs alongside the configuration phase.
	started := make(chan error, 1)
	go func() {
		args := adapterArgs(cfg)
		if request == "attach" {
			started <- client.Attach(ctx, args)
		} else {
			started <- client.Launch(ctx, args)
		}
	}()

	startDone := false
	select {
	case <-s.initialized:
	case err := <-started:
		if err != nil {
			return fmt.Errorf("%s: %w", request, err)
		}
		startDone = true
		select {
		case <-s.initialized:
		case <-ctx.Done():
			return s.abort()
		case <-client.Done():
			return s.lost()
		}
	case <-ctx.Done():
		return s.abort()
	case <-client.Done():
		return s.lost()
	}

	for _, fb := range breakpoints {
		placed, err := client.SetBreakpoints(ctx, dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: fb.Path},
			Breakpoints: fb.Breakpoints,
		})
		if err != nil {
			b.Sink.Notify(fmt.Sprintf("breakpoints in %s: %v", fb.Path, err), message.Warn)
			continue
		}
		for i, bp := range placed {
			if bp.Verified {
				continue
			}
			line := bp.Line
			if line == 0 && i < len(fb.Breakpoints) {
				line = fb.Breakpoints[i].Line
			}
			b.Sink.Notify(fmt.Sprintf("breakpoint %s:%d not verified: %s", fb.Path, line, bp.Message), message.Warn)
		}
	}

	if caps.SupportsConfigurationDoneRequest {
		if err := client.ConfigurationDone(ctx); err != nil {
			return fmt.Errorf("configurationDone: %w", err)
		}
	}

	if !startDone {
		select {
		case err := <-started:
			if err != nil {
				return fmt.Errorf("%s: %w", request, err)
			}
		case <-ctx.Done():
			return s.abort()
		case <-client.Done():
			return s.lost()
		}
	}
	b.Sink.Notify(fmt.Sprintf("debug session started (%s)", adapter.ID), message.Info)

	select {
	case <-s.terminated:
		s.disconnect(false)
		return s.exitErr()
	case <-ctx.Done():
		return s.abort()
	case <-client.Done():
		return s.lost()
	}
}

func (b *DAPBackend) resolve(cfg map[string]any) (Adapter, error) {
	typ := strings.ToLower(cast.ToString(cfg[KeyType]))
	if typ == "" {
		typ = DetectType(cast.ToString(cfg[KeyProgram]))
	}

	if explicit, ok := cfg[KeyAdapter]; ok && explicit != nil {
		return adapterFromConfig(typ, explicit)
	}
	if typ == "" {
		return Adapter{}, fmt.Errorf("%w: type is not set", ErrUnknownAdapter)
	}
	a, ok := b.Adapters[typ]
	if !ok {
		return Adapter{}, fmt.Errorf("%w: %q", ErrUnknownAdapter, typ)
	}
	return a, nil
}

// adapterArgs returns cfg without the keys consumed by the backend.
func adapterArgs(cfg map[string]any) map[string]any {
	args := make(map[string]any, len(cfg))
	for k, v := range cfg {
		switch k {
		case KeyBreakpoints, KeyAdapter:
			continue
		}
		args[k] = v
	}
	return args
}

// start launches the adapter process and connects to it.
func (b *DAPBackend) start(ctx context.Context, a Adapter) (dap.Transport, error) {
	path, err := exec.LookPath(a.Command)
	if err != nil {
		return nil, err
	}

	args := a.Args
	port := ""
	if a.Transport == TransportSocket {
		port, err = freePort()
		if err != nil {
			return nil, err
		}
		args = make([]string, len(a.Args))
		for i, arg := range a.Args {
			args[i] = strings.ReplaceAll(arg, PortPlaceholder, port)
		}
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = b.Dir
	cmd.Env = b.Env
	cmd.Stderr = b.Output
	b.logger.Debug().Str("command", path).Strs("args", args).Msg("starting debug adapter")

	if a.Transport == TransportStdio {
		return dap.NewStdioTransport(cmd)
	}

	cmd.Stdout = b.Output
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	tr, err := b.dial(ctx, net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	return &processTransport{SocketTransport: tr, cmd: cmd}, nil
}

// dial polls address until the adapter accepts a connection.
func (b *DAPBackend) dial(ctx context.Context, address string) (*dap.SocketTransport, error) {
	ctx, cancel := context.WithTimeout(ctx, b.StartTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		tr, err := dap.DialSocket(ctx, address)
		if err == nil {
			return tr, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for adapter on %s: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}

func freePort() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("reserve port: %w", err)
	}
	defer ln.Close()
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port), nil
}

// processTransport closes the adapter process with the connection.
type processTransport struct {
	*dap.SocketTransport
	cmd *exec.Cmd
}

func (t *processTransport) Close() error {
	err := t.SocketTransport.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	t.cmd.Wait()
	return err
}

// session tracks the events of one Run.
type session struct {
	backend *DAPBackend
	client  *dap.Client
	ctx     context.Context

	initialized chan struct{}
	terminated  chan struct{}

	mu       sync.Mutex
	exitCode *int
}

func (s *session) watch() {
	s.initialized = make(chan struct{})
	s.terminated = make(chan struct{})
	var initOnce, termOnce sync.Once
	b := s.backend

	s.client.On("initialized", func(dap.Event) {
		initOnce.Do(func() { close(s.initialized) })
	})
	s.client.On("terminated", func(dap.Event) {
		termOnce.Do(func() { close(s.terminated) })
	})
	s.client.OnOutput(func(body dap.OutputEventBody) {
		switch body.Category {
		case "telemetry":
		case "important":
			b.Sink.Notify(strings.TrimRight(body.Output, "\n"), message.Warn)
		default:
			io.WriteString(b.Output, body.Output)
		}
	})
	s.client.OnExited(func(body dap.ExitedEventBody) {
		code := body.ExitCode
		s.mu.Lock()
		s.exitCode = &code
		s.mu.Unlock()
	})
	s.client.OnStopped(func(body dap.StoppedEventBody) {
		msg := "stopped: " + body.Reason
		if body.Description != "" && body.Description != body.Reason {
			msg += " (" + body.Description + ")"
		}
		if body.Text != "" {
			msg += ": " + body.Text
		}
		b.Sink.Notify(msg, message.Info)

		// handlers run on the receive goroutine
		go func() {
			if err := s.client.Continue(s.ctx, body.ThreadID); err != nil && s.ctx.Err() == nil {
				b.logger.Debug().Err(err).Int("thread", body.ThreadID).Msg("continue failed")
			}
		}()
	})
}

// abort terminates the debuggee after ctx is done.
func (s *session) abort() error {
	s.disconnect(true)
	return s.ctx.Err()
}

// lost reports an adapter that went away. A debuggee that already exited
// ends the session normally.
func (s *session) lost() error {
	select {
	case <-s.terminated:
		return s.exitErr()
	default:
	}

	s.mu.Lock()
	exited := s.exitCode != nil
	s.mu.Unlock()
	if exited {
		return s.exitErr()
	}
	return fmt.Errorf("%w: %v", ErrAdapterExited, s.client.Err())
}

func (s *session) disconnect(terminate bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 2*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx, dap.DisconnectArguments{TerminateDebuggee: terminate}); err != nil {
		s.backend.logger.Debug().Err(err).Msg("disconnect")
	}
}

func (s *session) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode != nil && *s.exitCode != 0 {
		return &ExitError{Code: *s.exitCode}
	}
	return nil
}
