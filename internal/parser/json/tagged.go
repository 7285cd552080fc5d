package json

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Attribute-value type tags of the tagged wire format.
const (
	tagString    = "S"
	tagNumber    = "N"
	tagBool      = "BOOL"
	tagNull      = "NULL"
	tagList      = "L"
	tagMap       = "M"
	tagStringSet = "SS"
	tagNumberSet = "NS"
	tagBinarySet = "BS"
	tagBinary    = "B"
)

var knownTags = map[string]bool{
	tagString: true, tagNumber: true, tagBool: true, tagNull: true,
	tagList: true, tagMap: true, tagStringSet: true, tagNumberSet: true,
	tagBinarySet: true, tagBinary: true,
}

// envelopeKeys are single-key wrappers that always hold the attribute map.
var envelopeKeys = map[string]bool{"Item": true, "M": true, "NewImage": true}

// ParseTagged parses newline-delimited objects in the tagged attribute-value
// format, e.g.
//
//	{"Item":{"age":{"N":"30"},"name":{"S":"Ann"}}}
//
// Each line is unwrapped from its envelope (if any) and every attribute is
// converted to a plain value. Unrecognized tags pass the attribute value
// through unchanged. A line that fails conversion is skipped with a warning.
func ParseTagged(ctx context.Context, r io.Reader, emit EmitFunc, opts Options) (Stats, error) {
	return parseLineObjects(ctx, r, emit, opts, UnmarshalTagged)
}

// UnmarshalTagged converts one tagged item (optionally wrapped) to plain values.
func UnmarshalTagged(obj map[string]any) (map[string]any, error) {
	item := unwrapEnvelope(obj)
	out := make(map[string]any, len(item))
	for k, av := range item {
		v, err := convertAttribute(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// unwrapEnvelope strips a single-key outer wrapper. The wrapper is removed
// when its value is an object of attribute values and either the key is a
// known envelope name or every inner value is itself a tagged value.
func unwrapEnvelope(obj map[string]any) map[string]any {
	if len(obj) != 1 {
		return obj
	}
	for k, v := range obj {
		inner, ok := v.(map[string]any)
		if !ok || len(inner) == 0 {
			return obj
		}
		allTagged := true
		for _, iv := range inner {
			m, ok := iv.(map[string]any)
			if !ok {
				return obj
			}
			if !isTagged(m) {
				allTagged = false
			}
		}
		if envelopeKeys[k] || allTagged {
			return inner
		}
	}
	return obj
}

func isTagged(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return knownTags[k]
	}
	return false
}

// convertAttribute converts one attribute value such as {"N":"30"}.
func convertAttribute(av any) (any, error) {
	m, ok := av.(map[string]any)
	if !ok || len(m) != 1 {
		return av, nil
	}

	var tag string
	var v any
	for k, val := range m {
		tag, v = k, val
	}

	switch tag {
	case tagString, tagBinary:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: want string, got %s", tag, typeName(v))
		}
		return s, nil

	case tagNumber:
		return parseTaggedNumber(v)

	case tagBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			pb, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("BOOL: %w", err)
			}
			return pb, nil
		default:
			return nil, fmt.Errorf("BOOL: want boolean, got %s", typeName(v))
		}

	case tagNull:
		return nil, nil

	case tagList:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("L: want array, got %s", typeName(v))
		}
		out := make([]any, len(arr))
		for i, e := range arr {
			cv, err := convertAttribute(e)
			if err != nil {
				return nil, fmt.Errorf("L[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil

	case tagMap:
		mm, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("M: want object, got %s", typeName(v))
		}
		out := make(map[string]any, len(mm))
		for k, e := range mm {
			cv, err := convertAttribute(e)
			if err != nil {
				return nil, fmt.Errorf("M.%s: %w", k, err)
			}
			out[k] = cv
		}
		return out, nil

	case tagStringSet, tagBinarySet:
		return convertSet(tag, v, func(e any) (any, error) {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("want string, got %s", typeName(e))
			}
			return s, nil
		})

	case tagNumberSet:
		return convertSet(tag, v, parseTaggedNumber)

	default:
		return av, nil
	}
}

func convertSet(tag string, v any, conv func(any) (any, error)) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: want array, got %s", tag, typeName(v))
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		cv, err := conv(e)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", tag, i, err)
		}
		out[i] = cv
	}
	return out, nil
}

// parseTaggedNumber returns int64 when the text has no decimal point and fits,
// otherwise float64.
func parseTaggedNumber(v any) (any, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		return nil, fmt.Errorf("N: want numeric string, got %s", typeName(v))
	}

	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("N: invalid number %q", s)
	}
	return f, nil
}
