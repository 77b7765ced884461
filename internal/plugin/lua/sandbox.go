package lua

import (
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to operations that cannot touch the
// filesystem or spawn processes outside the projconf module.
type Sandbox struct {
	L *lua.LState

	// modules lists the names require may load besides the safe built-ins.
	modules map[string]bool

	// Getenv backs os.getenv. Defaults to os.Getenv.
	Getenv func(string) string
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:       L,
		modules: make(map[string]bool),
		Getenv:  os.Getenv,
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
	} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeOS()
	s.installSafeRequire()
}

// Allow lets require load a preloaded module.
func (s *Sandbox) Allow(module string) {
	s.modules[module] = true
}

// SetPrint replaces the print global. Arguments are converted with
// tostring and joined by tabs, as the standard print does.
func (s *Sandbox) SetPrint(fn func(line string)) {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		line := ""
		for i := 1; i <= top; i++ {
			if i > 1 {
				line += "\t"
			}
			line += L.ToStringMeta(L.Get(i)).String()
		}
		fn(line)
		return 0
	}))
}

// installSafeOS installs an os table limited to environment and clock reads.
func (s *Sandbox) installSafeOS() {
	osMod := s.L.NewTable()

	s.L.SetField(osMod, "getenv", s.L.NewFunction(func(L *lua.LState) int {
		value := s.Getenv(L.CheckString(1))
		if value == "" {
			L.Push(lua.LNil)
		} else {
			L.Push(lua.LString(value))
		}
		return 1
	}))

	s.L.SetField(osMod, "time", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))

	start := time.Now()
	s.L.SetField(osMod, "clock", s.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(time.Since(start).Seconds()))
		return 1
	}))

	s.L.SetGlobal("os", osMod)
}

// installSafeRequire replaces require with a version that loads only the
// built-in safe libraries and modules registered through Allow. package.path
// and package.cpath are cleared so nothing is read from disk.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	safeModules := map[string]bool{
		"string":    true,
		"table":     true,
		"math":      true,
		"coroutine": true,
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		if !safeModules[modName] && !s.modules[modName] {
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}
