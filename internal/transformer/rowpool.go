// Package transformer turns decoded JSON objects into flat records and
// positional rows ready for parameter binding.
package transformer

import "sync"

// Row is a pooled positional row: one bound value per table column.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - The loader builds a Row per record, hands r.V to the statement it
//     submits, and calls Free once the batch transaction has finished.
//   - If the statement may still be referenced (e.g. a cancelled call whose
//     driver is unwinding), use Drop instead so the slice is not reused.
type Row struct {
	V     []any
	Index int // 0-based position of the record in the load
}

var rowPool sync.Pool

// GetRow returns a Row with len(V) == colCount and every element nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Index = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row without pooling it.
func (r *Row) Drop() {
	r.V = nil
	r.Index = 0
}
