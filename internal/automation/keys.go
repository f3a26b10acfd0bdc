package automation

import (
	"fmt"
	"strings"

	"github.com/go-vgo/robotgo"
)

// Special keys robotgo accepts by name
var validKeys = map[string]bool{
	"enter": true, "return": true, "tab": true, "space": true,
	"backspace": true, "delete": true, "escape": true, "esc": true,
	"up": true, "down": true, "left": true, "right": true,
	"home": true, "end": true, "pageup": true, "pagedown": true,
	"insert": true, "printscreen": true, "menu": true, "capslock": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true,
	"f6": true, "f7": true, "f8": true, "f9": true, "f10": true,
	"f11": true, "f12": true, "f13": true, "f14": true, "f15": true,
	"f16": true, "f17": true, "f18": true, "f19": true, "f20": true,
}

// Modifier aliases normalized to robotgo names
var modifierAliases = map[string]string{
	"command": "command",
	"cmd":     "command",
	"super":   "command",
	"win":     "command",
	"control": "control",
	"ctrl":    "control",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
}

// ParseKeyCombo splits a combo like "ctrl+shift+t" into the final key
// and its normalized modifiers. The last segment is the key; every
// earlier segment must be a modifier.
func ParseKeyCombo(combo string) (key string, mods []string, err error) {
	parts := strings.Split(combo, "+")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return "", nil, fmt.Errorf("empty key combo %q", combo)
	}

	key = parts[len(parts)-1]
	for _, part := range parts[:len(parts)-1] {
		mod, ok := modifierAliases[part]
		if !ok {
			return "", nil, fmt.Errorf("unknown modifier %q in combo %q", part, combo)
		}
		mods = append(mods, mod)
	}

	// Normalize common key aliases
	switch key {
	case "page_up":
		key = "pageup"
	case "page_down":
		key = "pagedown"
	}

	return key, mods, nil
}

// tapKey performs the actual key press. Single characters and known
// special keys go through KeyTap; anything longer without modifiers is
// typed as literal text.
func tapKey(key string, mods []string) error {
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}

	if len(key) == 1 || validKeys[key] {
		return robotgo.KeyTap(key, args...)
	}
	if len(mods) == 0 {
		robotgo.TypeStr(key)
		return nil
	}
	return fmt.Errorf("unsupported key %q", key)
}
