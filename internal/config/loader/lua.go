package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"

	lualib "github.com/dshills/projconf/internal/plugin/lua"
)

// LuaLoader evaluates Lua project files.
//
// Functions in the returned settings are callbacks into the Lua state that
// evaluated the file. The loader keeps that state open until the next load
// or Release, so callbacks from the current configuration stay callable.
type LuaLoader struct {
	fs      afero.Fs
	host    lualib.Host
	timeout time.Duration

	mu    sync.Mutex
	state *lualib.State
}

// NewLuaLoader creates a Lua loader reading from fsys.
func NewLuaLoader(fsys afero.Fs, host lualib.Host) *LuaLoader {
	return &LuaLoader{
		fs:      fsys,
		host:    host,
		timeout: lualib.DefaultExecutionTimeout,
	}
}

// SetTimeout sets the evaluation timeout for subsequent loads.
func (l *LuaLoader) SetTimeout(d time.Duration) {
	l.timeout = d
}

// LoadFrom evaluates the file at path.
func (l *LuaLoader) LoadFrom(path string) (map[string]any, error) {
	return l.LoadContext(context.Background(), path)
}

// LoadContext evaluates the file at path. The chunk must return a table;
// anything else is a *ParseError wrapping ErrNotTable.
func (l *LuaLoader) LoadContext(ctx context.Context, path string) (map[string]any, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			l.replace(nil)
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	state := lualib.NewState(lualib.WithExecutionTimeout(l.timeout))
	host := l.host
	host.Root = filepath.Dir(path)
	state.InstallModule(host)

	lv, err := state.Eval(ctx, bytes.NewReader(data), path)
	if err != nil {
		state.Close()
		l.replace(nil)
		line := luaErrorLine(err.Error())
		return nil, &ParseError{Path: path, Line: line, Message: err.Error(), Err: err}
	}

	settings, ok := state.ToGoValue(lv).(map[string]any)
	if lv.Type() != lua.LTTable || !ok {
		state.Close()
		l.replace(nil)
		return nil, &ParseError{
			Path:    path,
			Message: fmt.Sprintf("%v, got %s", ErrNotTable, describe(lv)),
			Err:     ErrNotTable,
		}
	}

	l.replace(state)
	return settings, nil
}

// Release closes the Lua state backing the last loaded configuration.
func (l *LuaLoader) Release() error {
	l.replace(nil)
	return nil
}

func (l *LuaLoader) replace(state *lualib.State) {
	l.mu.Lock()
	old := l.state
	l.state = state
	l.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func describe(lv lua.LValue) string {
	if lv.Type() == lua.LTTable {
		return "a list"
	}
	return lv.Type().String()
}

var luaLineRE = regexp.MustCompile(`:(\d+):`)

// luaErrorLine extracts the line number from a "chunk:line: msg" error.
func luaErrorLine(msg string) int {
	m := luaLineRE.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
