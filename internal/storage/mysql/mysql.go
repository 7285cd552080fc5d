// Package mysql registers the MySQL/MariaDB backend (go-sql-driver/mysql).
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
	"jsonetl/internal/storage/sqldb"
)

// Kind is the registry name of this backend.
const Kind = "mysql"

func init() {
	storage.Register(Kind, Open)
}

// Open connects with a go-sql-driver DSN, e.g.
// "user:pass@tcp(127.0.0.1:3306)/db?parseTime=true".
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	return sqldb.Open(ctx, "mysql", cfg.DSN, Dialect{}, func(db *sql.DB) {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(16)
	})
}

// Dialect is the MySQL flavor of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return Kind }

func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) ColumnType(a schema.Affinity) string {
	switch a {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "DOUBLE"
	default:
		return "LONGTEXT"
	}
}

func (d Dialect) RowIDColumn(name string) string {
	return d.QuoteIdent(name) + " BIGINT AUTO_INCREMENT PRIMARY KEY"
}

func (d Dialect) LoadedAtColumn(name string) string {
	return d.QuoteIdent(name) + " TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
}

func (d Dialect) CreateTable(table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", "))
}

func (d Dialect) AddColumn(table, def string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), def)
}

func (Dialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT COLUMN_NAME AS name, DATA_TYPE AS type
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`, []any{table}
}

var _ storage.Dialect = Dialect{}
