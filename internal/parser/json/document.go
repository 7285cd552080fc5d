package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseDocument parses one whole-file JSON value from r.
//
// Behavior:
//   - Root object: emitted as one record.
//   - Root array: each element is decoded and emitted one at a time, so large
//     arrays are never held in memory. Elements that are null or not objects
//     are skipped with a warning.
//
// Errors:
//   - ErrEmptyDocument if r holds only whitespace.
//   - A syntax error anywhere in the document fails the whole file.
//   - A scalar root value is rejected.
//   - Anything after the root value other than whitespace fails the file with
//     ErrTrailingData. Records already emitted belong to a failed file.
func ParseDocument(ctx context.Context, r io.Reader, emit EmitFunc, opts Options) (Stats, error) {
	opts = opts.withDefaults()

	dec := json.NewDecoder(stripBOM(r))
	dec.UseNumber()

	var stats Stats
	tk := &ticker{ctx: ctx, opts: opts}
	elem := 0

	emitObject := func(obj map[string]any) error {
		if err := emit(obj); err != nil {
			return err
		}
		stats.Records++
		return tk.tick()
	}

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return stats, ErrEmptyDocument
		}
		return stats, fmt.Errorf("json: read first token: %w", err)
	}

	switch d := tok.(type) {
	case json.Delim:
		switch d {
		case '[':
			for dec.More() {
				elem++
				var raw any
				if err := dec.Decode(&raw); err != nil {
					return stats, fmt.Errorf("json: decode array element %d: %w", elem, err)
				}
				obj, ok := raw.(map[string]any)
				if !ok {
					opts.warn(&stats, elem, fmt.Errorf("array element not an object (got %s)", typeName(raw)))
					continue
				}
				if err := emitObject(obj); err != nil {
					return stats, err
				}
			}
			if end, err := dec.Token(); err != nil {
				return stats, fmt.Errorf("json: read array end: %w", err)
			} else if end != json.Delim(']') {
				return stats, fmt.Errorf("json: expected array end ']', got %v", end)
			}

		case '{':
			elem++
			obj, err := materializeObject(dec)
			if err != nil {
				return stats, err
			}
			if err := emitObject(obj); err != nil {
				return stats, err
			}

		default:
			return stats, fmt.Errorf("json: unsupported root delimiter %q", d)
		}

	default:
		return stats, fmt.Errorf("json: unsupported root value %s (want object or array)", typeName(tok))
	}

	return stats, expectEOF(dec)
}

// expectEOF fails unless only whitespace follows the root value.
func expectEOF(dec *json.Decoder) error {
	tok, err := dec.Token()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", ErrTrailingData, err)
	default:
		return fmt.Errorf("%w (got %v at offset %d)", ErrTrailingData, tok, dec.InputOffset())
	}
}

// materializeObject builds the object whose '{' has already been consumed.
func materializeObject(dec *json.Decoder) (map[string]any, error) {
	v, err := materializeValueFromFirstToken(dec, json.Delim('{'))
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// materializeValueFromFirstToken builds a Go value for the current JSON value,
// given its first token has already been read.
func materializeValueFromFirstToken(dec *json.Decoder, tok any) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		m := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read object key: %w", err)
			}
			k, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("json: object key not a string (got %T)", kt)
			}
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read value of %q: %w", k, err)
			}
			v, err := materializeValueFromFirstToken(dec, vt)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read object end: %w", err)
		} else if end != json.Delim('}') {
			return nil, fmt.Errorf("json: expected '}', got %v", end)
		}
		return m, nil

	case '[':
		arr := []any{}
		for dec.More() {
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read array value: %w", err)
			}
			v, err := materializeValueFromFirstToken(dec, vt)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read array end: %w", err)
		} else if end != json.Delim(']') {
			return nil, fmt.Errorf("json: expected ']', got %v", end)
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("json: unexpected delimiter %q", d)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
