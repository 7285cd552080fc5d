package storage

import (
	"strings"

	"jsonetl/internal/schema"
)

// Dialect generates the backend-specific SQL the loader needs.
type Dialect interface {
	// Name is the backend kind, e.g. "sqlite".
	Name() string

	// QuoteIdent quotes an already sanitized identifier.
	QuoteIdent(name string) string

	// Placeholder returns the bind marker for the 1-based parameter index.
	Placeholder(index int) string

	// ColumnType maps an affinity to a column type.
	ColumnType(a schema.Affinity) string

	// RowIDColumn is the definition of the surrogate primary key column.
	RowIDColumn(name string) string

	// LoadedAtColumn is the definition of a timestamp column defaulting to now.
	LoadedAtColumn(name string) string

	// CreateTable returns DDL creating table with defs unless it exists.
	CreateTable(table string, defs []string) string

	// AddColumn returns DDL adding one column definition to table.
	AddColumn(table, def string) string

	// ColumnsQuery returns a query whose first result column is the column
	// name and whose second is the declared type, for table.
	ColumnsQuery(table string) (string, []any)
}

// InsertQuery builds a parameterized single-row INSERT for the quoted columns.
func InsertQuery(d Dialect, table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

// AffinityOf maps a declared column type back to an affinity.
func AffinityOf(declared string) schema.Affinity {
	t := strings.ToLower(declared)
	switch {
	case strings.Contains(t, "int"):
		return schema.Integer
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"),
		strings.Contains(t, "numeric"), strings.Contains(t, "decimal"):
		return schema.Real
	default:
		return schema.Text
	}
}

// QuoteDouble quotes an identifier with ANSI double quotes.
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
