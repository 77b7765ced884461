package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/dshills/projconf/internal/config/layer"
)

// DefaultKeymapMode is the mode used when a keymap entry names none.
const DefaultKeymapMode = "n"

// Indent holds indentation settings for an editing context.
type Indent struct {
	ExpandTab   bool
	ShiftWidth  int
	TabStop     int
	SoftTabStop int
}

// IndentOverride holds the subset of indentation settings a filetype changes.
// Nil fields keep the base value.
type IndentOverride struct {
	ExpandTab   *bool
	ShiftWidth  *int
	TabStop     *int
	SoftTabStop *int
}

// Apply returns base with the override's fields replaced.
func (o IndentOverride) Apply(base Indent) Indent {
	if o.ExpandTab != nil {
		base.ExpandTab = *o.ExpandTab
	}
	if o.ShiftWidth != nil {
		base.ShiftWidth = *o.ShiftWidth
	}
	if o.TabStop != nil {
		base.TabStop = *o.TabStop
	}
	if o.SoftTabStop != nil {
		base.SoftTabStop = *o.SoftTabStop
	}
	return base
}

// KeymapSpec is a user-declared keymap.
type KeymapSpec struct {
	// Keys is the left-hand side, e.g. "<leader>t".
	Keys string
	// Mode is the editor mode, "n" by default.
	Mode string
	// Action is what the keymap triggers.
	Action Action
	// Description is shown in keymap listings.
	Description string
}

// Config is the effective project configuration.
// A Config is immutable once decoded; reloads produce a new value.
type Config struct {
	RootDir          string
	BuildCmd         Action
	RunCmd           Action
	DebugConfig      Action
	BuildInTerminal  bool
	Compiler         string
	FileExtensions   []string
	ExcludePatterns  []string
	Indent           Indent
	IndentByFiletype map[string]IndentOverride
	Keymaps          []KeymapSpec
	Env              map[string]string
	EnvFile          string

	raw map[string]any
}

// Decode builds a Config from a merged configuration map.
//
// Values that cannot be decoded fall back to the built-in default for their
// key; every such value is reported in the returned error (a join of
// *FieldError). The returned Config is always usable.
func Decode(raw map[string]any) (*Config, error) {
	d := &decoder{raw: raw, defaults: Defaults()}

	cfg := &Config{
		RootDir:          d.str(KeyRootDir),
		BuildCmd:         d.action(KeyBuildCmd),
		RunCmd:           d.action(KeyRunCmd),
		DebugConfig:      d.action(KeyDebugConfig),
		BuildInTerminal:  d.boolean(KeyBuildInTerminal),
		Compiler:         d.str(KeyCompiler),
		FileExtensions:   d.strings(KeyFileExtensions),
		ExcludePatterns:  d.strings(KeyExcludePatterns),
		Indent:           d.indent(),
		IndentByFiletype: d.indentByFiletype(),
		Keymaps:          d.keymaps(),
		Env:              d.env(),
		EnvFile:          d.str(KeyEnvFile),
		raw:              layer.Clone(raw),
	}
	if cfg.raw == nil {
		cfg.raw = make(map[string]any)
	}

	return cfg, errors.Join(d.errs...)
}

// IndentFor returns the indentation for a filetype: the base settings with
// any per-filetype override applied field by field.
func (c *Config) IndentFor(filetype string) Indent {
	if o, ok := c.IndentByFiletype[filetype]; ok {
		return o.Apply(c.Indent)
	}
	return c.Indent
}

// Get returns the raw merged value at a dot-separated path.
func (c *Config) Get(path string) (any, bool) {
	return layer.GetByPath(c.raw, path)
}

// Raw returns a copy of the merged configuration map.
func (c *Config) Raw() map[string]any {
	return layer.Clone(c.raw)
}

// Dump renders the merged configuration as YAML with sorted keys.
// Functions are rendered as "<function>", so two loads of an unchanged
// project file dump to identical bytes.
func (c *Config) Dump() ([]byte, error) {
	return DumpValue(c.raw)
}

// DumpValue renders one configuration value as YAML the way Dump does.
func DumpValue(v any) ([]byte, error) {
	out, err := yaml.Marshal(printable(v))
	if err != nil {
		return nil, fmt.Errorf("dump config: %w", err)
	}
	return out, nil
}

// printable replaces values YAML cannot represent.
func printable(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = printable(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = printable(x)
		}
		return out
	case nil:
		return nil
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return "<function>"
	}
	return v
}

// decoder reads typed values, falling back to defaults on bad input.
type decoder struct {
	raw      map[string]any
	defaults map[string]any
	errs     []error
}

func (d *decoder) fail(key string, value any, err error) {
	d.errs = append(d.errs, &FieldError{Key: key, Value: value, Err: err})
}

// lookup returns the raw value and, separately, the default value for key.
func (d *decoder) lookup(key string) (any, bool, any) {
	v, ok := layer.GetByPath(d.raw, key)
	def, _ := layer.GetByPath(d.defaults, key)
	return v, ok, def
}

func (d *decoder) str(key string) string {
	v, ok, def := d.lookup(key)
	if ok && v != nil {
		s, err := cast.ToStringE(v)
		if err == nil {
			return s
		}
		d.fail(key, v, err)
	}
	return cast.ToString(def)
}

func (d *decoder) boolean(key string) bool {
	v, ok, def := d.lookup(key)
	if ok && v != nil {
		b, err := cast.ToBoolE(v)
		if err == nil {
			return b
		}
		d.fail(key, v, err)
	}
	return cast.ToBool(def)
}

func (d *decoder) integer(key string) int {
	v, ok, def := d.lookup(key)
	if ok && v != nil {
		n, err := cast.ToIntE(v)
		if err == nil {
			return n
		}
		d.fail(key, v, err)
	}
	return cast.ToInt(def)
}

func (d *decoder) strings(key string) []string {
	v, ok, def := d.lookup(key)
	if ok && v != nil {
		if m, isMap := v.(map[string]any); isMap && len(m) == 0 {
			// An empty Lua table decodes as a map.
			return []string{}
		}
		s, err := cast.ToStringSliceE(v)
		if err == nil {
			return s
		}
		d.fail(key, v, err)
	}
	out := cast.ToStringSlice(def)
	if out == nil {
		out = []string{}
	}
	return out
}

func (d *decoder) action(key string) Action {
	v, ok, _ := d.lookup(key)
	if !ok {
		return Action{}
	}
	a, err := ActionOf(v)
	if err != nil {
		d.fail(key, v, err)
		return Action{}
	}
	return a
}

func (d *decoder) indent() Indent {
	return Indent{
		ExpandTab:   d.boolean(KeyIndent + "." + KeyExpandTab),
		ShiftWidth:  d.integer(KeyIndent + "." + KeyShiftWidth),
		TabStop:     d.integer(KeyIndent + "." + KeyTabStop),
		SoftTabStop: d.integer(KeyIndent + "." + KeySoftTabStop),
	}
}

func (d *decoder) indentByFiletype() map[string]IndentOverride {
	out := make(map[string]IndentOverride)

	v, ok, _ := d.lookup(KeyIndentByFiletype)
	if !ok || v == nil {
		return out
	}
	byType, isMap := v.(map[string]any)
	if !isMap {
		d.fail(KeyIndentByFiletype, v, ErrUnsupportedValue)
		return out
	}

	for ft, raw := range byType {
		key := KeyIndentByFiletype + "." + ft
		settings, isMap := raw.(map[string]any)
		if !isMap {
			d.fail(key, raw, ErrUnsupportedValue)
			continue
		}

		var o IndentOverride
		if x, ok := settings[KeyExpandTab]; ok {
			if b, err := cast.ToBoolE(x); err == nil {
				o.ExpandTab = &b
			} else {
				d.fail(key+"."+KeyExpandTab, x, err)
			}
		}
		o.ShiftWidth = d.optInt(key+"."+KeyShiftWidth, settings, KeyShiftWidth)
		o.TabStop = d.optInt(key+"."+KeyTabStop, settings, KeyTabStop)
		o.SoftTabStop = d.optInt(key+"."+KeySoftTabStop, settings, KeySoftTabStop)
		out[ft] = o
	}
	return out
}

func (d *decoder) optInt(path string, m map[string]any, key string) *int {
	x, ok := m[key]
	if !ok {
		return nil
	}
	n, err := cast.ToIntE(x)
	if err != nil {
		d.fail(path, x, err)
		return nil
	}
	return &n
}

func (d *decoder) env() map[string]string {
	v, ok, _ := d.lookup(KeyEnv)
	if !ok || v == nil {
		return map[string]string{}
	}
	env, err := cast.ToStringMapStringE(v)
	if err != nil {
		d.fail(KeyEnv, v, err)
		return map[string]string{}
	}
	return env
}

// keymaps accepts either a table keyed by left-hand side or a list of
// entries carrying their own "keys" (or "lhs") field.
func (d *decoder) keymaps() []KeymapSpec {
	v, ok, _ := d.lookup(KeyKeymaps)
	if !ok || v == nil {
		return nil
	}

	var specs []KeymapSpec
	switch entries := v.(type) {
	case map[string]any:
		for keys, rhs := range entries {
			spec, err := keymapSpec(keys, rhs)
			if err != nil {
				d.fail(KeyKeymaps+"."+keys, rhs, err)
				continue
			}
			specs = append(specs, spec)
		}
	case []any:
		for i, entry := range entries {
			m, isMap := entry.(map[string]any)
			if !isMap {
				d.fail(fmt.Sprintf("%s[%d]", KeyKeymaps, i+1), entry, ErrInvalidKeymap)
				continue
			}
			keys := cast.ToString(firstOf(m, "keys", "lhs"))
			spec, err := keymapSpec(keys, m)
			if err != nil {
				d.fail(fmt.Sprintf("%s[%d]", KeyKeymaps, i+1), entry, err)
				continue
			}
			specs = append(specs, spec)
		}
	default:
		d.fail(KeyKeymaps, v, ErrUnsupportedValue)
		return nil
	}

	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Mode != specs[j].Mode {
			return specs[i].Mode < specs[j].Mode
		}
		return specs[i].Keys < specs[j].Keys
	})
	return specs
}

// keymapSpec decodes one right-hand side: a command string, a function, or
// a table {mode = ..., cmd = ..., desc = ...}.
func keymapSpec(keys string, rhs any) (KeymapSpec, error) {
	if keys == "" {
		return KeymapSpec{}, fmt.Errorf("%w: missing keys", ErrInvalidKeymap)
	}

	spec := KeymapSpec{Keys: keys, Mode: DefaultKeymapMode}

	table, isTable := rhs.(map[string]any)
	if !isTable {
		a, err := ActionOf(rhs)
		if err != nil {
			return KeymapSpec{}, err
		}
		if a.IsAbsent() {
			return KeymapSpec{}, fmt.Errorf("%w: %s has no command", ErrInvalidKeymap, keys)
		}
		spec.Action = a
		return spec, nil
	}

	if mode := cast.ToString(table["mode"]); mode != "" {
		spec.Mode = mode
	}
	spec.Description = cast.ToString(firstOf(table, "desc", "description"))

	cmd := firstOf(table, "cmd", "rhs", "command")
	if _, nested := cmd.(map[string]any); nested {
		return KeymapSpec{}, fmt.Errorf("%w: %s command must be a string or function", ErrInvalidKeymap, keys)
	}
	a, err := ActionOf(cmd)
	if err != nil {
		return KeymapSpec{}, err
	}
	if a.IsAbsent() {
		return KeymapSpec{}, fmt.Errorf("%w: %s has no command", ErrInvalidKeymap, keys)
	}
	spec.Action = a
	return spec, nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
