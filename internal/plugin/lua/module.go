package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/projconf/internal/message"
)

// ModuleName is the name of the module project files load with
// require("projconf"). The module is also set as a global.
const ModuleName = "projconf"

// Host supplies the editor services the projconf module exposes.
type Host struct {
	// Root is the discovered project root, exposed as projconf.root.
	Root string

	// Notify backs projconf.notify(msg, level) and print.
	Notify func(msg string, level message.Level)

	// Exec backs projconf.exec(cmd). It runs a shell command in dir, the
	// project root, and returns its combined output and exit code.
	Exec func(ctx context.Context, dir, command string) (output string, code int, err error)

	// Getenv backs projconf.getenv and os.getenv.
	Getenv func(name string) string
}

// InstallModule preloads the projconf module for host and exposes it as a
// global.
//
//	local p = require("projconf")
//	p.notify("building in " .. p.root, "info")
//	local out, code = p.exec("git rev-parse --short HEAD")
func (s *State) InstallModule(host Host) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if host.Getenv != nil {
		s.sandbox.Getenv = host.Getenv
	}
	if host.Notify != nil {
		s.sandbox.SetPrint(func(line string) {
			host.Notify(line, message.Debug)
		})
	}

	loader := func(L *lua.LState) int {
		L.Push(newModule(L, host, s.sandbox.Getenv))
		return 1
	}
	s.L.PreloadModule(ModuleName, loader)
	s.sandbox.Allow(ModuleName)
	s.L.SetGlobal(ModuleName, newModule(s.L, host, s.sandbox.Getenv))
}

func newModule(L *lua.LState, host Host, getenv func(string) string) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "root", lua.LString(host.Root))

	L.SetField(mod, "notify", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		level := message.ParseLevel(L.OptString(2, "info"))
		if host.Notify != nil {
			host.Notify(msg, level)
		}
		return 0
	}))

	L.SetField(mod, "exec", L.NewFunction(func(L *lua.LState) int {
		cmd := L.CheckString(1)
		if host.Exec == nil {
			L.RaiseError("%s", ErrExecUnavailable.Error())
			return 0
		}
		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out, code, err := host.Exec(ctx, host.Root, cmd)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(out))
		L.Push(lua.LNumber(code))
		return 2
	}))

	L.SetField(mod, "getenv", L.NewFunction(func(L *lua.LState) int {
		value := getenv(L.CheckString(1))
		if value == "" {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LString(value))
		}
		return 1
	}))

	return mod
}
