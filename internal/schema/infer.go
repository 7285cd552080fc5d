package schema

import (
	"sort"

	"jsonetl/pkg/records"
)

// MaxSamples bounds the raw values kept per column.
const MaxSamples = 5

// Column is one inferred output column.
type Column struct {
	Name     string   `json:"name"`
	Type     Affinity `json:"type"`
	Nullable bool     `json:"nullable"`
	Samples  []any    `json:"samples,omitempty"`
}

// stats accumulates evidence for one column across the record set.
type stats struct {
	kind    Kind
	present int
	nulls   int
	samples []any
}

func (s *stats) observe(v any) {
	s.present++
	k := Classify(v)
	if k == KindNull {
		s.nulls++
		return
	}
	s.kind = Join(s.kind, k)
	if len(s.samples) < MaxSamples {
		s.samples = append(s.samples, v)
	}
}

// Infer returns one Column per distinct non-internal key across recs, sorted
// by name.
//
// Absence of a key and an explicit null are both nullability evidence. The
// result is independent of record order except for Samples, which hold the
// first MaxSamples non-null values in input order.
func Infer(recs []records.Record) []Column {
	acc := make(map[string]*stats)
	for _, r := range recs {
		for k, v := range r {
			if records.IsInternal(k) {
				continue
			}
			s := acc[k]
			if s == nil {
				s = &stats{}
				acc[k] = s
			}
			s.observe(v)
		}
	}

	total := len(recs)
	out := make([]Column, 0, len(acc))
	for name, s := range acc {
		missing := total - s.present
		out = append(out, Column{
			Name:     name,
			Type:     s.kind.Affinity(),
			Nullable: missing+s.nulls > 0,
			Samples:  s.samples,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
