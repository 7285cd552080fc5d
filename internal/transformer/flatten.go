package transformer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"jsonetl/pkg/records"
)

const (
	// DefaultMaxDepth is how many object levels are expanded into compound keys.
	DefaultMaxDepth = 2
	// DefaultSeparator joins parent and child keys.
	DefaultSeparator = "."
)

// FlattenOptions controls Flatten.
type FlattenOptions struct {
	// MaxDepth is the number of object levels expanded. Objects below it are
	// stored as compact JSON text. <= 0 means DefaultMaxDepth.
	MaxDepth int
	// Separator joins nested keys. Empty means DefaultSeparator.
	Separator string
}

func (o FlattenOptions) withDefaults() FlattenOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Separator == "" {
		o.Separator = DefaultSeparator
	}
	return o
}

// Flatten collapses obj into a single-level record.
//
// Behavior:
//   - Nested objects are expanded while depth < MaxDepth; deeper objects are
//     serialized to compact JSON text.
//   - Arrays are never descended; they are always serialized to JSON text.
//   - json.Number becomes int64 when integral and in range, else float64.
//   - nil stays nil. An empty nested object contributes no keys.
//
// Flattening an already flat record returns an equal record.
func Flatten(obj map[string]any, opts FlattenOptions) records.Record {
	opts = opts.withDefaults()
	out := make(records.Record, len(obj))
	flattenInto(out, "", obj, 1, opts)
	return out
}

func flattenInto(out records.Record, prefix string, obj map[string]any, depth int, opts FlattenOptions) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + opts.Separator + k
		}

		if nested, ok := v.(map[string]any); ok && depth < opts.MaxDepth {
			flattenInto(out, key, nested, depth+1, opts)
			continue
		}
		out[key] = scalar(v)
	}
}

// scalar converts a decoded JSON value into something a SQL driver can bind.
func scalar(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case json.Number:
		return numberValue(t)
	case int:
		return int64(t)
	case map[string]any, []any, []string, []float64, []int64:
		return compactJSON(t)
	default:
		return t
	}
}

func numberValue(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return s
	}
	return f
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Values come from a JSON decoder, so Marshal only fails on exotic
		// types injected by callers.
		return ""
	}
	return string(b)
}
