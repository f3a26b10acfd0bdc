package script

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Params is the flat string-keyed parameter bag attached to steps,
// conditions and actions. Values originate from JSON decoding and may be
// native Go scalars or generic decoded values (float64, json.Number).
// Every accessor coerces to the requested type and falls back to the
// caller's default on any failure; none of them panic.
type Params map[string]any

// String returns the parameter as a string, or def when absent or not
// representable
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// JSON numbers decode to float64; render integers without a
		// trailing .0
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return def
	}
}

// Int returns the parameter as an int, or def when absent or not coercible
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case float32:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return int(f)
		}
		return def
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return int(f)
		}
		return def
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return def
	}
}

// Float returns the parameter as a float64, or def when absent or not
// coercible
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return def
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// Bool returns the parameter as a bool, or def when absent or not
// coercible. Strings accept the forms strconv.ParseBool understands.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
		return def
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i != 0
		}
		return def
	default:
		return def
	}
}

// Has reports whether the key is present with a non-nil value
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}
