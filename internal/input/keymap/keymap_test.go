package keymap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projconf/internal/config"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"<leader>pb", "<leader>pb", nil},
		{"<Leader>pb", "<leader>pb", nil},
		{"<LEADER>t", "<leader>t", nil},
		{"<c-S>", "<C-s>", nil},
		{"<S-C-F5>", "<C-S-F5>", nil},
		{"<esc>", "<Esc>", nil},
		{"<Enter>", "<CR>", nil},
		{"<M-x>", "<A-x>", nil},
		{"<C-->", "<C-->", nil},
		{"gg", "gg", nil},
		{" t", "<Space>t", nil},
		{"a<b", "a<b", nil},
		{"<>", "<>", nil},
		{"", "", ErrEmptyKeys},
		{"  ", "", ErrEmptyKeys},
		{"<X-a>", "", ErrInvalidKeys},
		{"<nosuchkey>", "", ErrInvalidKeys},
		{"<C-leader>", "", ErrInvalidKeys},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordingDispatcher struct {
	builtins []string
	execs    []string
}

func (d *recordingDispatcher) Builtin(_ context.Context, name string) error {
	d.builtins = append(d.builtins, name)
	return nil
}

func (d *recordingDispatcher) Exec(_ context.Context, command string) error {
	d.execs = append(d.execs, command)
	return nil
}

func TestDefaultBindings(t *testing.T) {
	r := NewRegistry()
	d := &recordingDispatcher{}
	ctx := context.Background()

	for _, keys := range []string{"<leader>pb", "<leader>pr", "<Leader>pd", "<leader>pf"} {
		require.NoError(t, r.Trigger(ctx, d, "n", keys))
	}
	assert.Equal(t, []string{BuiltinBuild, BuiltinRun, BuiltinDebug, BuiltinFiles}, d.builtins)

	err := r.Trigger(ctx, d, "i", "<leader>pb")
	assert.ErrorIs(t, err, ErrNoBinding, "defaults are normal mode only")
}

func TestReplaceDispatchesByShape(t *testing.T) {
	r := NewRegistry()
	d := &recordingDispatcher{}
	ctx := context.Background()

	called := 0
	err := r.Replace([]config.KeymapSpec{
		{Keys: "<leader>t", Mode: "n", Action: config.Shell("!go test ./..."), Description: "Test"},
		{Keys: "<leader>x", Mode: "n", Action: config.Func(func(context.Context, ...any) error {
			called++
			return nil
		})},
		{Keys: "<C-b>", Mode: "i", Action: config.Shell("make")},
	})
	require.NoError(t, err)

	require.NoError(t, r.Trigger(ctx, d, "n", "<Leader>t"))
	require.NoError(t, r.Trigger(ctx, d, "n", "<leader>x"))
	require.NoError(t, r.Trigger(ctx, d, "i", "<c-B>"))

	assert.Equal(t, []string{"!go test ./...", "make"}, d.execs)
	assert.Equal(t, 1, called)
	assert.Empty(t, d.builtins)
}

func TestReplaceDropsPreviousProject(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	d := &recordingDispatcher{}

	require.NoError(t, r.Replace([]config.KeymapSpec{
		{Keys: "<leader>a", Mode: "n", Action: config.Shell("a")},
	}))
	require.NoError(t, r.Replace([]config.KeymapSpec{
		{Keys: "<leader>b", Mode: "n", Action: config.Shell("b")},
	}))

	assert.ErrorIs(t, r.Trigger(ctx, d, "n", "<leader>a"), ErrNoBinding)
	require.NoError(t, r.Trigger(ctx, d, "n", "<leader>b"))
	assert.Len(t, r.Bindings(), 5)

	require.NoError(t, r.Replace(nil))
	assert.ElementsMatch(t, DefaultBindings(), r.Bindings(), "only defaults remain")
}

func TestProjectHidesDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Replace([]config.KeymapSpec{
		{Keys: "<leader>pb", Mode: "n", Action: config.Shell("make fast")},
	}))

	b, ok := r.Lookup("n", "<leader>pb")
	require.True(t, ok)
	assert.Equal(t, SourceProject, b.Source)
	assert.Equal(t, "make fast", b.Target())

	bindings := r.Bindings()
	assert.Len(t, bindings, 4)

	require.NoError(t, r.Replace(nil))
	b, _ = r.Lookup("n", "<leader>pb")
	assert.Equal(t, "projconf.build", b.Target())
}

func TestReplaceReportsInvalidKeys(t *testing.T) {
	r := NewRegistry()
	err := r.Replace([]config.KeymapSpec{
		{Keys: "<Hyper-a>", Mode: "n", Action: config.Shell("x")},
		{Keys: "<leader>ok", Action: config.Shell("y")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeys)

	b, ok := r.Lookup("n", "<leader>ok")
	require.True(t, ok, "valid entries are kept and mode defaults to normal")
	assert.Equal(t, "y", b.Action.Command)
}

func TestRunUnsupportedAction(t *testing.T) {
	err := Run(context.Background(), &recordingDispatcher{}, Binding{Action: config.Structured(map[string]any{"type": "go"})})
	assert.True(t, errors.Is(err, ErrUnsupportedAction))
}
