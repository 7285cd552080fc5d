package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"jsonetl/internal/schema"
)

// BindValue converts v into a driver value suitable for a column of affinity a.
//
// Backends must not assume a particular Go type for incoming values; this
// keeps binding consistent across drivers:
//   - INTEGER: bools become 0/1, integral floats and integer-looking text
//     become int64, "true"/"false" become 1/0.
//   - REAL: numbers and numeric text become float64, bools 0/1.
//   - TEXT: scalars are formatted, objects and arrays become JSON text.
//
// Values that cannot be converted are returned unchanged so the store can
// reject or coerce them itself.
func BindValue(v any, a schema.Affinity) any {
	if v == nil {
		return nil
	}
	switch a {
	case schema.Integer:
		return bindInteger(v)
	case schema.Real:
		return bindReal(v)
	default:
		return bindText(v)
	}
}

func bindInteger(v any) any {
	switch t := v.(type) {
	case bool:
		return boolInt(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<63 {
			return int64(t)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return bindInteger(f)
		}
		return t.String()
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if b, ok := parseBoolWord(s); ok {
			return boolInt(b)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return bindInteger(f)
		}
		return t
	default:
		return bindText(v)
	}
}

func bindReal(v any) any {
	switch t := v.(type) {
	case bool:
		return float64(boolInt(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		if b, ok := parseBoolWord(t); ok {
			return float64(boolInt(b))
		}
		return t
	default:
		return bindText(v)
	}
}

func bindText(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseBoolWord(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
