package keymap

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Parse errors
var (
	ErrEmptyKeys   = errors.New("empty key sequence")
	ErrInvalidKeys = errors.New("invalid key sequence")
)

// LeaderToken is the placeholder for the editor's leader key.
const LeaderToken = "<leader>"

// specialNames maps lower-cased key names to their canonical spelling.
var specialNames = map[string]string{
	"cr":          "CR",
	"enter":       "CR",
	"return":      "CR",
	"esc":         "Esc",
	"escape":      "Esc",
	"tab":         "Tab",
	"bs":          "BS",
	"backspace":   "BS",
	"del":         "Del",
	"delete":      "Del",
	"space":       "Space",
	"up":          "Up",
	"down":        "Down",
	"left":        "Left",
	"right":       "Right",
	"home":        "Home",
	"end":         "End",
	"pageup":      "PageUp",
	"pagedown":    "PageDown",
	"lt":          "lt",
	"bar":         "Bar",
	"bslash":      "Bslash",
	"leader":      "leader",
	"localleader": "localleader",
}

// Normalize returns the canonical form of a Vim-style key sequence, so that
// "<Leader>pb" and "<LEADER>pb" compare equal. Plain characters stand for
// themselves and a literal space is <Space>. Bracketed keys take modifier
// prefixes C, A, S and D (or M) in any order and case: "<c-S>" becomes
// "<C-s>".
func Normalize(keys string) (string, error) {
	if strings.TrimSpace(keys) == "" {
		return "", ErrEmptyKeys
	}

	var b strings.Builder
	for i := 0; i < len(keys); {
		if keys[i] == '<' {
			end := strings.IndexByte(keys[i:], '>')
			if end > 1 {
				tok, err := normalizeBracket(keys[i+1 : i+end])
				if err != nil {
					return "", err
				}
				b.WriteString(tok)
				i += end + 1
				continue
			}
		}

		r := rune(keys[i])
		switch {
		case r == ' ':
			b.WriteString("<Space>")
		case r < ' ' || r == unicode.MaxASCII:
			return "", fmt.Errorf("%w: control character %q", ErrInvalidKeys, r)
		default:
			b.WriteByte(keys[i])
		}
		i++
	}
	return b.String(), nil
}

func normalizeBracket(inner string) (string, error) {
	parts := strings.Split(inner, "-")
	name := parts[len(parts)-1]
	if name == "" && len(parts) > 1 {
		// <C-->
		name = "-"
		parts = parts[:len(parts)-1]
	}

	var ctrl, alt, shift, meta bool
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "c":
			ctrl = true
		case "a", "m":
			alt = true
		case "s":
			shift = true
		case "d":
			meta = true
		default:
			return "", fmt.Errorf("%w: unknown modifier %q in <%s>", ErrInvalidKeys, p, inner)
		}
	}

	canon, special := specialNames[strings.ToLower(name)]
	switch {
	case special:
		name = canon
	case isFunctionKey(name):
		name = strings.ToUpper(name)
	case len([]rune(name)) == 1:
		if ctrl {
			name = strings.ToLower(name)
		}
	default:
		return "", fmt.Errorf("%w: unknown key <%s>", ErrInvalidKeys, inner)
	}

	if name == "leader" || name == "localleader" {
		if ctrl || alt || shift || meta {
			return "", fmt.Errorf("%w: modifiers on <%s>", ErrInvalidKeys, inner)
		}
		return "<" + name + ">", nil
	}

	var mods []string
	if ctrl {
		mods = append(mods, "C")
	}
	if alt {
		mods = append(mods, "A")
	}
	if meta {
		mods = append(mods, "D")
	}
	if shift {
		mods = append(mods, "S")
	}
	return "<" + strings.Join(append(mods, name), "-") + ">", nil
}

func isFunctionKey(name string) bool {
	if len(name) < 2 || len(name) > 3 || (name[0] != 'f' && name[0] != 'F') {
		return false
	}
	for _, r := range name[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
