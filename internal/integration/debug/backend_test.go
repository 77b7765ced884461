package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projconf/internal/integration/debug/dap"
	"github.com/dshills/projconf/internal/message"
)

// fakeAdapter plays the adapter side of a session over a pipe.
type fakeAdapter struct {
	tr *dap.RawTransport

	// fail makes the named command answer success=false.
	fail string
	// exitCode is reported in the exited event.
	exitCode int
	// stop sends a stopped event after configurationDone and terminates on
	// continue.
	stop bool
	// hold never terminates on its own.
	hold bool

	mu       sync.Mutex
	seq      int
	commands []string
	args     map[string]json.RawMessage
}

func (f *fakeAdapter) serve() {
	for {
		msg, err := f.tr.Receive()
		if err != nil {
			return
		}
		var req dap.Request
		if json.Unmarshal(msg.Content, &req) != nil || req.Type != dap.TypeRequest {
			continue
		}

		f.mu.Lock()
		f.commands = append(f.commands, req.Command)
		if f.args == nil {
			f.args = make(map[string]json.RawMessage)
		}
		f.args[req.Command] = req.Arguments
		f.mu.Unlock()

		if req.Command == f.fail {
			f.respond(req, false, nil)
			continue
		}

		switch req.Command {
		case "initialize":
			f.respond(req, true, dap.Capabilities{SupportsConfigurationDoneRequest: true})
		case "launch", "attach":
			f.respond(req, true, nil)
			f.event("initialized", nil)
		case "setBreakpoints":
			var args dap.SetBreakpointsArguments
			json.Unmarshal(req.Arguments, &args)
			placed := make([]dap.Breakpoint, len(args.Breakpoints))
			for i, bp := range args.Breakpoints {
				placed[i] = dap.Breakpoint{ID: i + 1, Line: bp.Line, Verified: bp.Line < 1000}
				if !placed[i].Verified {
					placed[i].Message = "no code at line"
				}
			}
			f.respond(req, true, dap.SetBreakpointsResponseBody{Breakpoints: placed})
		case "configurationDone":
			f.respond(req, true, nil)
			switch {
			case f.stop:
				f.event("stopped", dap.StoppedEventBody{Reason: "breakpoint", ThreadID: 4})
			case !f.hold:
				f.finish()
			}
		case "continue":
			f.respond(req, true, nil)
			f.finish()
		default:
			f.respond(req, true, nil)
		}
	}
}

func (f *fakeAdapter) finish() {
	f.event("output", dap.OutputEventBody{Category: "stdout", Output: "hello from debuggee\n"})
	f.event("output", dap.OutputEventBody{Category: "telemetry", Output: "ignored"})
	f.event("exited", dap.ExitedEventBody{ExitCode: f.exitCode})
	f.event("terminated", nil)
}

func (f *fakeAdapter) send(v any) {
	content, _ := json.Marshal(v)
	_ = f.tr.Send(&dap.Message{ContentLength: len(content), Content: content})
}

func (f *fakeAdapter) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq
}

func (f *fakeAdapter) respond(req dap.Request, ok bool, body any) {
	resp := dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: f.nextSeq(), Type: dap.TypeResponse},
		RequestSeq:      req.Seq,
		Success:         ok,
		Command:         req.Command,
	}
	if !ok {
		resp.Message = "refused"
	}
	if body != nil {
		resp.Body, _ = json.Marshal(body)
	}
	f.send(resp)
}

func (f *fakeAdapter) event(name string, body any) {
	evt := dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: f.nextSeq(), Type: dap.TypeEvent},
		Event:           name,
	}
	if body != nil {
		evt.Body, _ = json.Marshal(body)
	}
	f.send(evt)
}

func (f *fakeAdapter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *fakeAdapter) argsOf(command string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	json.Unmarshal(f.args[command], v)
}

type fixture struct {
	backend *DAPBackend
	adapter *fakeAdapter
	sink    *message.Recorder
	out     *bytes.Buffer
	started []Adapter
}

func newFixture(t *testing.T, fa *fakeAdapter) *fixture {
	t.Helper()
	fx := &fixture{
		backend: NewDAPBackend("/src/app"),
		adapter: fa,
		sink:    message.NewRecorder(),
		out:     &bytes.Buffer{},
	}
	fx.backend.Sink = fx.sink
	fx.backend.Output = fx.out
	fx.backend.Connect = func(ctx context.Context, a Adapter) (dap.Transport, error) {
		fx.started = append(fx.started, a)
		client, server := net.Pipe()
		fa.tr = dap.NewRawTransport(server)
		go fa.serve()
		t.Cleanup(func() { server.Close() })
		return dap.NewRawTransport(client), nil
	}
	return fx
}

func runContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunLaunchSession(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{})

	err := fx.backend.Run(runContext(t), map[string]any{
		"type":    "go",
		"name":    "server",
		"mode":    "debug",
		"program": "./cmd/server",
		"breakpoints": []any{
			map[string]any{"file": "main.go", "line": int64(42)},
			map[string]any{"file": "main.go", "line": int64(7), "condition": "n > 2"},
			map[string]any{"file": "/abs/util.go", "line": int64(3)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"initialize", "launch", "setBreakpoints", "setBreakpoints", "configurationDone", "disconnect"}, fx.adapter.seen())
	require.Len(t, fx.started, 1)
	assert.Equal(t, "go", fx.started[0].ID)
	assert.Equal(t, TransportSocket, fx.started[0].Transport)

	var launch map[string]any
	fx.adapter.argsOf("launch", &launch)
	assert.Equal(t, map[string]any{"type": "go", "name": "server", "mode": "debug", "program": "./cmd/server"}, launch)

	var init dap.InitializeRequestArguments
	fx.adapter.argsOf("initialize", &init)
	assert.Equal(t, "go", init.AdapterID)
	assert.True(t, init.LinesStartAt1)

	assert.Equal(t, "hello from debuggee\n", fx.out.String())
	assert.Zero(t, fx.sink.Count(message.Warn))
	assert.Equal(t, 1, fx.sink.Count(message.Info))
}

func TestRunAttach(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{})

	err := fx.backend.Run(runContext(t), map[string]any{"type": "python", "request": "attach", "processId": int64(4242)})
	require.NoError(t, err)

	assert.Contains(t, fx.adapter.seen(), "attach")
	assert.NotContains(t, fx.adapter.seen(), "launch")
	assert.Equal(t, TransportStdio, fx.started[0].Transport)
}

func TestRunUnverifiedBreakpointWarns(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{})

	err := fx.backend.Run(runContext(t), map[string]any{
		"type":        "go",
		"breakpoints": map[string]any{"main.go": []any{int64(10), int64(5000)}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, fx.sink.Count(message.Warn))
	for _, e := range fx.sink.Entries() {
		if e.Level == message.Warn {
			assert.Contains(t, e.Message, "/src/app/main.go:5000 not verified")
		}
	}
}

func TestRunExitCode(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{exitCode: 3})

	err := fx.backend.Run(runContext(t), map[string]any{"type": "go", "program": "."})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestRunLaunchFailure(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{fail: "launch"})

	err := fx.backend.Run(runContext(t), map[string]any{"type": "go", "program": "missing"})
	require.Error(t, err)
	var reqErr *dap.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "launch", reqErr.Command)
}

func TestRunStopContinues(t *testing.T) {
	fx := newFixture(t, &fakeAdapter{stop: true})

	err := fx.backend.Run(runContext(t), map[string]any{"type": "go"})
	require.NoError(t, err)

	var cont dap.ContinueArguments
	fx.adapter.argsOf("continue", &cont)
	assert.Equal(t, 4, cont.ThreadID)

	var stops int
	for _, e := range fx.sink.Entries() {
		if e.Message == "stopped: breakpoint" {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
}

func TestRunCanceledTerminatesDebuggee(t *testing.T) {
	fa := &fakeAdapter{hold: true}
	fx := newFixture(t, fa)

	ctx, cancel := context.WithCancel(runContext(t))
	errc := make(chan error, 1)
	go func() {
		errc <- fx.backend.Run(ctx, map[string]any{"type": "go"})
	}()

	require.Eventually(t, func() bool {
		return fx.sink.Count(message.Info) == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var disc dap.DisconnectArguments
	fa.argsOf("disconnect", &disc)
	assert.True(t, disc.TerminateDebuggee)
}

func TestRunAdapterResolution(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]any
		wantID  string
		wantErr error
	}{
		{"by type", map[string]any{"type": "Delve"}, "go", nil},
		{"by program", map[string]any{"program": "tools/gen.py"}, "python", nil},
		{"explicit adapter", map[string]any{"type": "node", "adapter": map[string]any{"command": "node", "args": []any{"dap.js", "${port}"}, "transport": "socket"}}, "node", nil},
		{"unknown", map[string]any{"type": "cobol"}, "", ErrUnknownAdapter},
		{"missing", map[string]any{}, "", ErrUnknownAdapter},
		{"bad request", map[string]any{"type": "go", "request": "restart"}, "", ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, &fakeAdapter{})
			err := fx.backend.Run(runContext(t), tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, fx.started, "no adapter is started")
				return
			}
			require.NoError(t, err)
			require.Len(t, fx.started, 1)
			assert.Equal(t, tt.wantID, fx.started[0].ID)
		})
	}
}

func TestRunConnectFailure(t *testing.T) {
	b := NewDAPBackend("/src/app")
	b.Connect = func(context.Context, Adapter) (dap.Transport, error) {
		return nil, errors.New("dlv: not found")
	}

	err := b.Run(runContext(t), map[string]any{"type": "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start go adapter")
}

func TestAdapterFromConfig(t *testing.T) {
	a, err := adapterFromConfig("rdbg", map[string]any{"command": "rdbg", "args": []any{"--open"}})
	require.NoError(t, err)
	assert.Equal(t, Adapter{ID: "rdbg", Command: "rdbg", Args: []string{"--open"}, Transport: TransportStdio}, a)

	_, err = adapterFromConfig("x", map[string]any{"args": []any{"a"}})
	assert.Error(t, err)

	_, err = adapterFromConfig("x", map[string]any{"command": "x", "transport": "pigeon"})
	assert.Error(t, err)

	_, err = adapterFromConfig("x", "dlv")
	assert.Error(t, err)
}
