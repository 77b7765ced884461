package config

// Recognized setting keys.
const (
	KeyBuildCmd         = "build_cmd"
	KeyRunCmd           = "run_cmd"
	KeyDebugConfig      = "debug_config"
	KeyBuildInTerminal  = "build_in_terminal"
	KeyCompiler         = "compiler"
	KeyFileExtensions   = "file_extensions"
	KeyExcludePatterns  = "exclude_patterns"
	KeyRootDir          = "root_dir"
	KeyIndent           = "indent"
	KeyIndentByFiletype = "indent_by_filetype"
	KeyKeymaps          = "keymaps"
	KeyEnv              = "env"
	KeyEnvFile          = "env_file"
)

// Indent sub-keys.
const (
	KeyExpandTab   = "expandtab"
	KeyShiftWidth  = "shiftwidth"
	KeyTabStop     = "tabstop"
	KeySoftTabStop = "softtabstop"
)

// Defaults returns a fresh copy of the built-in configuration.
// build_cmd, run_cmd and debug_config are absent by default.
func Defaults() map[string]any {
	return map[string]any{
		KeyBuildInTerminal: false,
		KeyCompiler:        "",
		KeyFileExtensions:  []any{},
		KeyExcludePatterns: []any{
			"**/.git/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/__pycache__/**",
			"**/.venv/**",
			"**/dist/**",
			"**/build/**",
			"**/target/**",
		},
		KeyRootDir: "",
		KeyIndent: map[string]any{
			KeyExpandTab:   true,
			KeyShiftWidth:  4,
			KeyTabStop:     4,
			KeySoftTabStop: 4,
		},
		KeyIndentByFiletype: map[string]any{
			"go":   map[string]any{KeyExpandTab: false},
			"make": map[string]any{KeyExpandTab: false},
		},
		KeyKeymaps: map[string]any{},
		KeyEnv:     map[string]any{},
		KeyEnvFile: "",
	}
}
