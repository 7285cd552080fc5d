// Package sqlite registers the embedded SQLite backend (modernc.org/sqlite,
// pure Go, no cgo).
//
// SQLite serializes writers, so the pool is limited to one connection. This
// also makes in-memory DSNs (":memory:") behave as a single database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
	"jsonetl/internal/storage/sqldb"
)

// Kind is the registry name of this backend.
const Kind = "sqlite"

func init() {
	storage.Register(Kind, Open)
}

// Open opens a SQLite database file (or ":memory:").
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	return sqldb.Open(ctx, "sqlite", dsn, Dialect{}, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
}

// Dialect is the SQLite flavor of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return Kind }

func (Dialect) QuoteIdent(name string) string { return sqlIdent(name) }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) ColumnType(a schema.Affinity) string {
	switch a {
	case schema.Integer:
		return "INTEGER"
	case schema.Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (Dialect) RowIDColumn(name string) string {
	return sqlIdent(name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (Dialect) LoadedAtColumn(name string) string {
	return sqlIdent(name) + " DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP"
}

func (Dialect) CreateTable(table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(table), strings.Join(defs, ", "))
}

func (Dialect) AddColumn(table, def string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", sqlIdent(table), def)
}

func (Dialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT name AS name, type AS type FROM pragma_table_info(?) ORDER BY cid`, []any{table}
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return storage.QuoteDouble(id)
}

var _ storage.Dialect = Dialect{}
