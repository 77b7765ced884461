// Package lua provides the Lua runtime used to evaluate project files.
package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/projconf/internal/config"
)

// DefaultExecutionTimeout bounds a single chunk evaluation.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with a sandbox and serialized access.
//
// gopher-lua's LState is not goroutine-safe. Every method on State takes the
// state's mutex, so callbacks created from this state may be invoked from any
// goroutine. A Lua function must not call back into Go code that re-enters
// the same State.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration

	sandbox *Sandbox
	bridge  *Bridge

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the timeout applied to each chunk evaluation.
// Function calls are bounded only by the caller's context. Zero disables the
// timeout.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)

	state.L = L
	state.sandbox = NewSandbox(L)
	state.sandbox.Install()
	state.bridge = NewBridge(L)
	state.bridge.Func = state.callback

	return state
}

// openSafeLibraries opens the standard libraries that cannot reach the
// filesystem or spawn processes. io, os and debug stay closed; the sandbox
// installs a restricted os table instead.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// Eval compiles the chunk read from r and runs it, returning the chunk's
// first return value (LNil when it returns nothing). name is used in error
// messages.
func (s *State) Eval(ctx context.Context, r io.Reader, name string) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, err := s.L.Load(r, name)
	if err != nil {
		return lua.LNil, err
	}

	results, err := s.pcall(ctx, s.executionTimeout, fn, nil, 1)
	if err != nil {
		return lua.LNil, err
	}
	return results[0], nil
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	_, err := s.Eval(context.Background(), strings.NewReader(code), "<string>")
	return err
}

// CallFunction calls fn with Go arguments and returns its results as Go
// values.
func (s *State) CallFunction(ctx context.Context, fn *lua.LFunction, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	largs := make([]lua.LValue, len(args))
	for i, arg := range args {
		largs[i] = s.bridge.ToLuaValue(arg)
	}

	results, err := s.pcall(ctx, 0, fn, largs, lua.MultRet)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(results))
	for i, r := range results {
		out[i] = s.bridge.ToGoValue(r)
	}
	return out, nil
}

// pcall runs fn with panic recovery, cancelled with ctx or after timeout.
// The caller must hold s.mu.
func (s *State) pcall(ctx context.Context, timeout time.Duration, fn *lua.LFunction, args []lua.LValue, nret int) (results []lua.LValue, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	stackTop := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		s.L.SetTop(stackTop)
	}()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}
	if err := s.L.PCall(len(args), nret, nil); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	n := s.L.GetTop() - stackTop
	results = make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	return results, nil
}

// callback turns a Lua function into a Go callback bound to this state.
func (s *State) callback(fn *lua.LFunction) any {
	return config.Callback(func(ctx context.Context, args ...any) error {
		_, err := s.CallFunction(ctx, fn, args...)
		return err
	})
}

// ToGoValue converts a Lua value using this state's bridge.
func (s *State) ToGoValue(lv lua.LValue) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.ToGoValue(lv)
}

// SetGlobal sets a global variable from a Go value.
func (s *State) SetGlobal(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.bridge.ToLuaValue(value))
}

// GetGlobal returns a global variable as a Go value.
func (s *State) GetGlobal(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.bridge.ToGoValue(s.L.GetGlobal(name))
}

// Sandbox returns the sandbox installed in the state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Callbacks created from it return
// ErrStateClosed afterwards.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
