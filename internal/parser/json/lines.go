package json

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseLines parses newline-delimited JSON objects from r.
//
// The reader is consumed line by line with no line-length limit. Blank lines
// are ignored. A line that is not valid JSON, or not an object, is skipped
// with a warning.
//
// Errors:
//   - ErrNoRecords if no line produced a record.
//   - Read errors from r.
func ParseLines(ctx context.Context, r io.Reader, emit EmitFunc, opts Options) (Stats, error) {
	return parseLineObjects(ctx, r, emit, opts, nil)
}

// lineConverter rewrites one decoded line object before it is emitted.
type lineConverter func(obj map[string]any) (map[string]any, error)

func parseLineObjects(ctx context.Context, r io.Reader, emit EmitFunc, opts Options, convert lineConverter) (Stats, error) {
	opts = opts.withDefaults()

	var stats Stats
	tk := &ticker{ctx: ctx, opts: opts}

	err := eachLine(stripBOM(r), func(lineNo int, line []byte) error {
		if err := tk.tick(); err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}

		obj, err := decodeLineObject(line)
		if err == nil && convert != nil {
			obj, err = convert(obj)
		}
		if err != nil {
			opts.warn(&stats, lineNo, err)
			return nil
		}

		if err := emit(obj); err != nil {
			return err
		}
		stats.Records++
		return nil
	})
	if err != nil {
		return stats, err
	}
	if stats.Records == 0 {
		return stats, ErrNoRecords
	}
	return stats, nil
}

// eachLine calls fn for every physical line of r with surrounding whitespace
// trimmed. Line numbers are 1-based.
func eachLine(r io.Reader, fn func(lineNo int, line []byte) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if ferr := fn(lineNo, bytes.TrimSpace(line)); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
	}
}

// decodeLineObject decodes exactly one JSON object from line.
func decodeLineObject(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid json: trailing data after value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("line is not an object (got %s)", typeName(v))
	}
	return obj, nil
}
