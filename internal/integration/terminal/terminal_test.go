package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projconf/internal/integration/task"
)

func newTestTerminal(t *testing.T, mode Mode) (*Terminal, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	devnull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { devnull.Close() })

	var out, errOut bytes.Buffer
	term := New()
	term.Shell = sh
	term.In = devnull
	term.Out = &out
	term.Err = &errOut
	term.Mode = mode
	term.Environ = func() []string { return []string{"PATH=/usr/bin:/bin"} }
	return term, &out, &errOut
}

func TestRunPlain(t *testing.T) {
	term, out, errOut := newTestTerminal(t, ModePlain)

	code, err := term.Run(context.Background(), task.Command{
		Line: `echo "$MSG"; echo oops >&2; exit 4`,
		Env:  map[string]string{"MSG": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, code)
	assert.Equal(t, "hi\n", out.String())
	assert.Equal(t, "oops\n", errOut.String())
}

func TestRunAutoWithoutTTYIsPlain(t *testing.T) {
	term, out, _ := newTestTerminal(t, ModeAuto)
	assert.False(t, term.usePTY())

	code, err := term.Run(context.Background(), task.Command{Line: "pwd", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.NotEmpty(t, out.String())
}

func TestRunPTY(t *testing.T) {
	if ptmx, tty, err := pty.Open(); err != nil {
		t.Skipf("pty not available: %v", err)
	} else {
		ptmx.Close()
		tty.Close()
	}
	term, out, _ := newTestTerminal(t, ModePTY)

	code, err := term.Run(context.Background(), task.Command{Line: `test -t 1 && echo tty; exit 3`})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "tty", strings.TrimSpace(out.String()))
}

func TestRunInvalidCommand(t *testing.T) {
	term, out, _ := newTestTerminal(t, ModePlain)

	code, err := term.Run(context.Background(), task.Command{Line: "echo 'open"})
	var serr *task.SyntaxError
	require.True(t, errors.As(err, &serr), "error %v", err)
	assert.Equal(t, -1, code)
	assert.Empty(t, out.String())
}

func TestRunStartError(t *testing.T) {
	term, _, _ := newTestTerminal(t, ModePlain)
	term.Shell = "/definitely/missing/sh"

	_, err := term.Run(context.Background(), task.Command{Line: "true"})
	var serr *task.StartError
	assert.True(t, errors.As(err, &serr), "error %v", err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "auto", ModeAuto.String())
	assert.Equal(t, "pty", ModePTY.String())
	assert.Equal(t, "plain", ModePlain.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
