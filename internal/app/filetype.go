package app

import (
	"path/filepath"
	"strings"
)

var filetypesByName = map[string]string{
	"Makefile":       "make",
	"makefile":       "make",
	"GNUmakefile":    "make",
	"CMakeLists.txt": "cmake",
	"Dockerfile":     "dockerfile",
	"go.mod":         "gomod",
}

var filetypesByExt = map[string]string{
	"go":   "go",
	"py":   "python",
	"lua":  "lua",
	"js":   "javascript",
	"mjs":  "javascript",
	"jsx":  "javascriptreact",
	"ts":   "typescript",
	"tsx":  "typescriptreact",
	"rs":   "rust",
	"c":    "c",
	"h":    "c",
	"cc":   "cpp",
	"cpp":  "cpp",
	"hpp":  "cpp",
	"sh":   "sh",
	"bash": "sh",
	"mk":   "make",
	"md":   "markdown",
	"json": "json",
	"yaml": "yaml",
	"yml":  "yaml",
	"toml": "toml",
	"rb":   "ruby",
	"java": "java",
}

// DetectFiletype guesses the filetype of path from its name, returning ""
// when unknown.
func DetectFiletype(path string) string {
	base := filepath.Base(path)
	if ft, ok := filetypesByName[base]; ok {
		return ft
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	return filetypesByExt[strings.ToLower(ext)]
}
