// Package debug starts debug sessions from a project's debug_config table.
//
// A Backend receives the table and drives a debugger. DAPBackend, the
// default, starts a Debug Adapter Protocol adapter for the table's type and
// runs one session through it:
//
//	debug_config = {
//	    type = "go",
//	    request = "launch",
//	    mode = "debug",
//	    program = "./cmd/server",
//	    breakpoints = { { file = "cmd/server/main.go", line = 42 } },
//	}
//
// Every key except type, breakpoints and adapter is passed unchanged as the
// launch or attach arguments, so adapter-specific settings work as they do
// in other DAP clients. Known types are go (dlv dap), python (debugpy),
// lldb (lldb-dap) and gdb; an adapter table names any other adapter:
//
//	adapter = { command = "node", args = { "dapDebugServer.js", "${port}" }, transport = "socket" }
//
// The session has no interactive front end. Stops are reported on the
// notification channel and the thread is resumed, which makes breakpoints
// behave as tracepoints; logMessage breakpoints print without stopping.
package debug
