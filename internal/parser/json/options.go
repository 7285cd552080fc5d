// Package json parses record files into decoded JSON objects.
//
// Three layouts are supported and share one output contract:
//
//   - document: a whole-file JSON object or array of objects (.json)
//   - lines: newline-delimited JSON objects (.jsonl)
//   - tagged: newline-delimited objects in the DynamoDB attribute-value wire
//     format, unwrapped to plain values (.ddbjson)
//
// Every parser streams: records are handed to an emit callback as soon as they
// are decoded. Per-record problems are reported through Options.OnWarning and
// skipped; only file-level problems are returned as errors.
package json

import (
	"context"
	"errors"
	"io"
	"runtime"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultYieldEvery is the default number of records/lines between yield points.
const DefaultYieldEvery = 1000

var (
	// ErrEmptyDocument is returned for a file with no JSON value at all.
	ErrEmptyDocument = errors.New("empty document")
	// ErrTrailingData is returned when a document has content after its root value.
	ErrTrailingData = errors.New("unexpected data after root value")
	// ErrNoRecords is returned when a line-oriented file has no valid record.
	ErrNoRecords = errors.New("no valid records")
	// ErrUnsupportedExtension is returned by dispatch for unknown file types.
	ErrUnsupportedExtension = errors.New("unsupported extension")
)

// EmitFunc receives one decoded object. Returning an error aborts the parse.
type EmitFunc func(obj map[string]any) error

// Options tunes a parse.
type Options struct {
	// YieldEvery is the number of records (document) or lines (lines, tagged)
	// between calls to Yield. <= 0 means DefaultYieldEvery.
	YieldEvery int

	// Yield is invoked at every yield point. A non-nil error aborts the parse.
	// Nil means DefaultYield.
	Yield func(ctx context.Context) error

	// OnWarning observes soft, per-record problems. line is 1-based: the
	// physical line for line-oriented input, the element index for documents.
	OnWarning func(line int, err error)
}

// Stats summarizes one parsed file.
type Stats struct {
	Records  int
	Warnings int
}

// DefaultYield checks for cancellation and lets other goroutines run.
func DefaultYield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

func (o Options) withDefaults() Options {
	if o.YieldEvery <= 0 {
		o.YieldEvery = DefaultYieldEvery
	}
	if o.Yield == nil {
		o.Yield = DefaultYield
	}
	return o
}

// ticker counts units of work and yields every n of them.
type ticker struct {
	ctx   context.Context
	opts  Options
	count int
}

func (t *ticker) tick() error {
	t.count++
	if t.count%t.opts.YieldEvery != 0 {
		return nil
	}
	return t.opts.Yield(t.ctx)
}

func (o Options) warn(stats *Stats, line int, err error) {
	stats.Warnings++
	if o.OnWarning != nil {
		o.OnWarning(line, err)
	}
}

// stripBOM drops a leading UTF-8 or UTF-16 byte order mark, transcoding
// UTF-16 input to UTF-8. Input without a BOM passes through untouched.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}
