// Package records defines the flattened record representation passed between
// the parser, schema inference and loader stages.
package records

import "strings"

// Record is one flattened object: column name to scalar value (or nil).
//
// Internal bookkeeping keys start with InternalPrefix and are never treated as
// data columns.
type Record map[string]any

const (
	// InternalPrefix marks keys owned by the pipeline rather than the dataset.
	InternalPrefix = "__"

	// SourceFileKey holds the path of the file a record was parsed from.
	SourceFileKey = InternalPrefix + "source_file"

	// UnknownSource is bound to the provenance column when a record carries no
	// source file.
	UnknownSource = "unknown"
)

// IsInternal reports whether key is pipeline bookkeeping.
func IsInternal(key string) bool {
	return strings.HasPrefix(key, InternalPrefix)
}

// SourceFile returns the provenance path of r, or UnknownSource.
func (r Record) SourceFile() string {
	if s, ok := r[SourceFileKey].(string); ok && s != "" {
		return s
	}
	return UnknownSource
}

// SetSourceFile stamps r with the path it was read from.
func (r Record) SetSourceFile(path string) {
	r[SourceFileKey] = path
}

// DataKeys returns the non-internal keys of r in unspecified order.
func (r Record) DataKeys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		if IsInternal(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}
