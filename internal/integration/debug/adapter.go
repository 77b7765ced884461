package debug

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
)

// TransportKind selects how the client reaches an adapter process.
type TransportKind int

const (
	// TransportStdio speaks DAP over the adapter's stdin and stdout.
	TransportStdio TransportKind = iota

	// TransportSocket dials a TCP port the adapter listens on.
	TransportSocket
)

// String returns the transport name used in debug_config.adapter.
func (k TransportKind) String() string {
	if k == TransportSocket {
		return "socket"
	}
	return "stdio"
}

// PortPlaceholder in Adapter.Args is replaced with a free local port for
// socket adapters.
const PortPlaceholder = "${port}"

// Adapter describes how to start a debug adapter.
type Adapter struct {
	// ID is sent as adapterID in the initialize request.
	ID string

	Command string
	Args    []string

	Transport TransportKind
}

// DefaultAdapters maps debug_config.type values to adapters.
func DefaultAdapters() map[string]Adapter {
	delve := Adapter{
		ID:        "go",
		Command:   "dlv",
		Args:      []string{"dap", "--listen=127.0.0.1:" + PortPlaceholder},
		Transport: TransportSocket,
	}
	debugpy := Adapter{
		ID:      "python",
		Command: "python3",
		Args:    []string{"-m", "debugpy.adapter"},
	}
	lldb := Adapter{
		ID:      "lldb",
		Command: "lldb-dap",
	}
	gdb := Adapter{
		ID:      "gdb",
		Command: "gdb",
		Args:    []string{"--interpreter=dap"},
	}

	return map[string]Adapter{
		"go":       delve,
		"delve":    delve,
		"python":   debugpy,
		"debugpy":  debugpy,
		"lldb":     lldb,
		"lldb-dap": lldb,
		"codelldb": lldb,
		"gdb":      gdb,
	}
}

// DetectType guesses the adapter type from a program path.
func DetectType(program string) string {
	switch strings.ToLower(filepath.Ext(program)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".c", ".cc", ".cpp", ".rs":
		return "lldb"
	}
	return ""
}

// adapterFromConfig reads an explicit debug_config.adapter table:
//
//	adapter = { command = "dlv", args = { "dap", "--listen=127.0.0.1:${port}" }, transport = "socket" }
func adapterFromConfig(typ string, v any) (Adapter, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Adapter{}, fmt.Errorf("adapter: expected a table, got %T", v)
	}

	a := Adapter{
		ID:      cast.ToString(m["id"]),
		Command: cast.ToString(m["command"]),
	}
	if a.ID == "" {
		a.ID = typ
	}
	if a.Command == "" {
		return Adapter{}, fmt.Errorf("adapter: command is required")
	}

	if raw, ok := m["args"]; ok && raw != nil {
		args, err := cast.ToStringSliceE(raw)
		if err != nil {
			return Adapter{}, fmt.Errorf("adapter.args: %w", err)
		}
		a.Args = args
	}

	switch t := cast.ToString(m["transport"]); t {
	case "", "stdio":
		a.Transport = TransportStdio
	case "socket", "tcp":
		a.Transport = TransportSocket
	default:
		return Adapter{}, fmt.Errorf("adapter.transport: unknown transport %q", t)
	}
	return a, nil
}
