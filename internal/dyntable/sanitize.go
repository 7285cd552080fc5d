// Package dyntable materializes inferred columns as a dynamically named table
// and bulk-loads records into it in transactional batches.
package dyntable

import (
	"sort"
	"strconv"
	"strings"
)

// TablePrefix is prepended to every sanitized target identifier.
const TablePrefix = "jsonetl_"

// Reserved columns present in every dynamic table.
const (
	RowIDColumn      = "_row_id"
	SourceFileColumn = "_source_file"
	LoadedAtColumn   = "_loaded_at"
)

var reserved = []string{RowIDColumn, SourceFileColumn, LoadedAtColumn}

// Sanitize replaces every rune outside [A-Za-z0-9_] with '_'. It is the only
// transformation applied to identifiers before they are quoted into DDL.
func Sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// TableName returns the physical table for a target identifier.
func TableName(target string) string {
	return TablePrefix + Sanitize(target)
}

// ColumnMapping pairs a record key with its physical column.
type ColumnMapping struct {
	Key    string
	Column string
}

// MapColumns assigns a unique sanitized column to every key.
//
// Keys are processed in sorted order. A sanitized name that collides
// (case-insensitively) with a reserved column or an earlier mapping gets a
// numeric suffix: "_2", "_3", ...
func MapColumns(keys []string) []ColumnMapping {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	taken := make(map[string]bool, len(sorted)+len(reserved))
	for _, r := range reserved {
		taken[r] = true
	}

	out := make([]ColumnMapping, 0, len(sorted))
	var prev string
	for i, k := range sorted {
		if i > 0 && k == prev {
			continue
		}
		prev = k

		base := Sanitize(k)
		col := base
		for n := 2; taken[strings.ToLower(col)]; n++ {
			col = base + "_" + strconv.Itoa(n)
		}
		taken[strings.ToLower(col)] = true
		out = append(out, ColumnMapping{Key: k, Column: col})
	}
	return out
}
