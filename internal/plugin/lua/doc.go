// Package lua evaluates project files in a sandboxed gopher-lua state.
//
// A project file is a Lua chunk that returns a table of settings:
//
//	local p = require("projconf")
//	return {
//	    build_cmd = "make -j4",
//	    run_cmd = function() p.notify("running from " .. p.root) end,
//	    indent = { shiftwidth = 2 },
//	}
//
// # State
//
// State owns an LState with only the package, base, table, string, math and
// coroutine libraries open. All access goes through the state's mutex.
// Chunk evaluation runs under an execution timeout enforced through the
// LState context; calls are bounded by the caller's context.
//
// # Sandbox
//
// The Sandbox removes dofile, loadfile, load and loadstring, replaces os with
// a table limited to getenv, time and clock, and restricts require to the
// safe built-in libraries plus modules registered with Allow.
//
// # Bridge
//
// The Bridge converts values in both directions. Lua functions returned by a
// project file become config.Callback values bound to the State that created
// them, so the State must stay open for as long as the configuration that
// holds them is in use. Go callbacks handed to Lua become Lua functions.
package lua
