package json

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Kind identifies a record file layout.
type Kind int

const (
	KindDocument Kind = iota + 1
	KindLines
	KindTagged
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindLines:
		return "lines"
	case KindTagged:
		return "tagged"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var kindByExt = map[string]Kind{
	".json":    KindDocument,
	".jsonl":   KindLines,
	".ddbjson": KindTagged,
}

// Extensions returns the supported file extensions (lower case, with dot).
func Extensions() []string {
	return []string{".json", ".jsonl", ".ddbjson"}
}

// KindForPath maps a file path to its layout by extension, case-insensitively.
func KindForPath(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if k, ok := kindByExt[ext]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnsupportedExtension, ext)
}

// Parse dispatches r to the parser for kind.
func Parse(ctx context.Context, kind Kind, r io.Reader, emit EmitFunc, opts Options) (Stats, error) {
	switch kind {
	case KindDocument:
		return ParseDocument(ctx, r, emit, opts)
	case KindLines:
		return ParseLines(ctx, r, emit, opts)
	case KindTagged:
		return ParseTagged(ctx, r, emit, opts)
	default:
		return Stats{}, fmt.Errorf("%w: %s", ErrUnsupportedExtension, kind)
	}
}

// ParseFile picks the parser for path and runs it over r.
func ParseFile(ctx context.Context, path string, r io.Reader, emit EmitFunc, opts Options) (Stats, error) {
	kind, err := KindForPath(path)
	if err != nil {
		return Stats{}, err
	}
	return Parse(ctx, kind, r, emit, opts)
}
