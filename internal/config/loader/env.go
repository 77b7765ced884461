package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/dshills/projconf/internal/config/layer"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "PROJCONF_"

// EnvLoader loads configuration overrides from environment variables.
//
// PROJCONF_BUILD_CMD sets build_cmd; a double underscore descends into a
// nested table, so PROJCONF_INDENT__SHIFTWIDTH sets indent.shiftwidth.
type EnvLoader struct {
	prefix string

	// Environ lists the environment. Defaults to os.Environ.
	Environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "PROJCONF_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		Environ: os.Environ,
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}

		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		path := l.envToPath(name)
		if path == "" {
			continue
		}
		layer.SetByPath(config, path, parseValue(value))
	}

	return config, nil
}

// ErrBadOverride is returned by ParseOverrides for an entry without "=".
var ErrBadOverride = errors.New("override must be key=value")

// ParseOverrides converts "path=value" pairs, such as
// "indent.shiftwidth=2", into a configuration map. Values are typed like
// environment overrides.
func ParseOverrides(pairs []string) (map[string]any, error) {
	config := make(map[string]any)
	for _, pair := range pairs {
		path, value, ok := strings.Cut(pair, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadOverride, pair)
		}
		layer.SetByPath(config, path, parseValue(value))
	}
	return config, nil
}

// envToPath converts PROJCONF_INDENT__SHIFTWIDTH to indent.shiftwidth.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	return strings.ReplaceAll(name, "__", ".")
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	// Try float (only if it contains a decimal point to avoid misinterpreting ints)
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	// Try JSON array/object
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// LoadDotenv reads a dotenv file. Returns nil, nil if it doesn't exist.
func LoadDotenv(fsys afero.Fs, path string) (map[string]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return env, nil
}
