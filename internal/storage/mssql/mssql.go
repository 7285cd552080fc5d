// Package mssql registers the Microsoft SQL Server backend.
//
// Column mapping:
//   - TEXT    -> NVARCHAR(MAX)
//   - INTEGER -> BIGINT
//   - REAL    -> FLOAT
//
// SQL Server has no CREATE TABLE IF NOT EXISTS; creation is guarded with
// OBJECT_ID instead.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
	"jsonetl/internal/storage/sqldb"
)

// Kind is the registry name of this backend.
const Kind = "mssql"

func init() {
	storage.Register(Kind, Open)
}

// Open connects with the "sqlserver" driver and validates connectivity.
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	return sqldb.Open(ctx, "sqlserver", cfg.DSN, Dialect{}, func(db *sql.DB) {
		// Conservative defaults for ETL-style bursty loads.
		db.SetMaxOpenConns(64)
		db.SetMaxIdleConns(64)
	})
}

// Dialect is the SQL Server flavor of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return Kind }

func (Dialect) QuoteIdent(name string) string { return mssqlIdent(name) }

func (Dialect) Placeholder(i int) string { return "@p" + strconv.Itoa(i) }

func (Dialect) ColumnType(a schema.Affinity) string {
	switch a {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (Dialect) RowIDColumn(name string) string {
	return mssqlIdent(name) + " BIGINT IDENTITY(1,1) PRIMARY KEY"
}

func (Dialect) LoadedAtColumn(name string) string {
	return mssqlIdent(name) + " DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()"
}

func (Dialect) CreateTable(table string, defs []string) string {
	return wrapCreateIfMissing(table, strings.Join(defs, ", "))
}

func (Dialect) AddColumn(table, def string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", mssqlIdent(table), def)
}

func (Dialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT COLUMN_NAME AS name, DATA_TYPE AS type
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`, []any{table}
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlIdent(tableName),
		innerDefs,
	)
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var _ storage.Dialect = Dialect{}
