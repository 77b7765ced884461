package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned for requests on a client whose transport has ended.
var ErrClosed = errors.New("dap client closed")

// RequestError is a response with success=false.
type RequestError struct {
	Command string
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return e.Command + " failed"
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}

// EventHandler receives one adapter event.
type EventHandler func(Event)

// Client sends requests to a debug adapter and dispatches its events.
type Client struct {
	transport Transport
	seq       atomic.Int64

	pendingMu sync.Mutex
	pending   map[int]chan result

	handlerMu sync.RWMutex
	handlers  map[string][]EventHandler
	onAny     EventHandler

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.RWMutex
	err       error
}

type result struct {
	resp *Response
	err  error
}

// NewClient starts receiving from transport.
func NewClient(transport Transport) *Client {
	c := &Client{
		transport: transport,
		pending:   make(map[int]chan result),
		handlers:  make(map[string][]EventHandler),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Close closes the transport. Pending requests fail with ErrClosed.
func (c *Client) Close() error {
	err := c.transport.Close()
	c.finish(ErrClosed)
	return err
}

// Done is closed when the adapter connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// On registers handler for the named event. Handlers run on the receive
// goroutine and must not block on requests to the same client.
func (c *Client) On(event string, handler EventHandler) {
	c.handlerMu.Lock()
	c.handlers[event] = append(c.handlers[event], handler)
	c.handlerMu.Unlock()
}

// OnAny registers a handler called for every event after the specific ones.
func (c *Client) OnAny(handler EventHandler) {
	c.handlerMu.Lock()
	c.onAny = handler
	c.handlerMu.Unlock()
}

// OnOutput registers a handler for output events.
func (c *Client) OnOutput(handler func(OutputEventBody)) {
	c.On("output", decoded(handler))
}

// OnStopped registers a handler for stopped events.
func (c *Client) OnStopped(handler func(StoppedEventBody)) {
	c.On("stopped", decoded(handler))
}

// OnExited registers a handler for exited events.
func (c *Client) OnExited(handler func(ExitedEventBody)) {
	c.On("exited", decoded(handler))
}

func decoded[T any](handler func(T)) EventHandler {
	return func(evt Event) {
		var body T
		if len(evt.Body) > 0 {
			if err := json.Unmarshal(evt.Body, &body); err != nil {
				return
			}
		}
		handler(body)
	}
}

func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			c.finish(err)
			return
		}
		c.handleMessage(msg)
	}
}

// finish records err, fails pending requests and closes Done once.
func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		c.pendingMu.Lock()
		for seq, ch := range c.pending {
			ch <- result{err: fmt.Errorf("%w: %v", ErrClosed, err)}
			delete(c.pending, seq)
		}
		close(c.done)
		c.pendingMu.Unlock()
	})
}

func (c *Client) handleMessage(msg *Message) {
	var base ProtocolMessage
	if err := json.Unmarshal(msg.Content, &base); err != nil {
		return
	}

	switch base.Type {
	case TypeResponse:
		var resp Response
		if err := json.Unmarshal(msg.Content, &resp); err != nil {
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.RequestSeq]
		delete(c.pending, resp.RequestSeq)
		c.pendingMu.Unlock()
		if ok {
			ch <- result{resp: &resp}
		}
	case TypeEvent:
		var evt Event
		if err := json.Unmarshal(msg.Content, &evt); err != nil {
			return
		}
		c.dispatch(evt)
	case TypeRequest:
		var req Request
		if err := json.Unmarshal(msg.Content, &req); err != nil {
			return
		}
		c.refuse(req)
	}
}

func (c *Client) dispatch(evt Event) {
	c.handlerMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[evt.Event]...)
	onAny := c.onAny
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
	if onAny != nil {
		onAny(evt)
	}
}

// refuse answers reverse requests such as runInTerminal, which this client
// does not offer.
func (c *Client) refuse(req Request) {
	resp := Response{
		ProtocolMessage: ProtocolMessage{Seq: c.nextSeq(), Type: TypeResponse},
		RequestSeq:      req.Seq,
		Command:         req.Command,
		Message:         "not supported",
	}
	content, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.transport.Send(&Message{ContentLength: len(content), Content: content})
}

func (c *Client) nextSeq() int {
	return int(c.seq.Add(1))
}

// Send issues a request and waits for its response. A response with
// success=false is returned as a *RequestError.
func (c *Client) Send(ctx context.Context, command string, args any) (*Response, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal %s arguments: %w", command, err)
		}
		raw = b
	}

	seq := c.nextSeq()
	content, err := json.Marshal(Request{
		ProtocolMessage: ProtocolMessage{Seq: seq, Type: TypeRequest},
		Command:         command,
		Arguments:       raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", command, err)
	}

	ch := make(chan result, 1)
	c.pendingMu.Lock()
	select {
	case <-c.done:
		c.pendingMu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.pending[seq] = ch
	c.pendingMu.Unlock()

	if err := c.transport.Send(&Message{ContentLength: len(content), Content: content}); err != nil {
		c.forget(seq)
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case <-ctx.Done():
		c.forget(seq)
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if !r.resp.Success {
			return r.resp, &RequestError{Command: command, Message: r.resp.Message}
		}
		return r.resp, nil
	}
}

func (c *Client) forget(seq int) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

// Initialize performs the initialize handshake.
func (c *Client) Initialize(ctx context.Context, args InitializeRequestArguments) (*Capabilities, error) {
	resp, err := c.Send(ctx, "initialize", args)
	if err != nil {
		return nil, err
	}

	var caps Capabilities
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &caps); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	return &caps, nil
}

// Launch sends launch with adapter-specific arguments.
func (c *Client) Launch(ctx context.Context, args map[string]any) error {
	_, err := c.Send(ctx, "launch", args)
	return err
}

// Attach sends attach with adapter-specific arguments.
func (c *Client) Attach(ctx context.Context, args map[string]any) error {
	_, err := c.Send(ctx, "attach", args)
	return err
}

// SetBreakpoints replaces the breakpoints of one source file.
func (c *Client) SetBreakpoints(ctx context.Context, args SetBreakpointsArguments) ([]Breakpoint, error) {
	resp, err := c.Send(ctx, "setBreakpoints", args)
	if err != nil {
		return nil, err
	}

	var body SetBreakpointsResponseBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode breakpoints: %w", err)
	}
	return body.Breakpoints, nil
}

// ConfigurationDone ends the configuration phase.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	_, err := c.Send(ctx, "configurationDone", nil)
	return err
}

// Continue resumes a stopped thread.
func (c *Client) Continue(ctx context.Context, threadID int) error {
	_, err := c.Send(ctx, "continue", ContinueArguments{ThreadID: threadID})
	return err
}

// Disconnect ends the session.
func (c *Client) Disconnect(ctx context.Context, args DisconnectArguments) error {
	_, err := c.Send(ctx, "disconnect", args)
	return err
}
