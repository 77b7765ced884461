// Package config defines the effective project configuration.
//
// A project configuration is assembled from layers with higher layers
// overriding lower ones at every nesting level:
//
//	┌─────────────────────────────┐
//	│  4. Session (--set)         │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Project file            │  ← <root>/.project.lua
//	├─────────────────────────────┤
//	│  2. User file               │  ← --user-config
//	├─────────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The merged map is decoded into a Config, a typed snapshot that is replaced
// in full on every reload. Action values (build_cmd, run_cmd, debug_config
// and keymap right-hand sides) are decoded into the Action tagged variant so
// consumers dispatch with an exhaustive switch instead of inspecting types.
//
// # Sub-packages
//
//   - layer: layer bookkeeping and deep merging
//   - loader: project file loading (Lua, TOML, YAML)
//   - notify: reload observers
//   - watcher: live reload of the project file
package config
