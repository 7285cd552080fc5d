package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
)

// Kind is the registry name of this backend.
const Kind = "postgres"

func init() {
	storage.Register(Kind, Open)
}

/*
Store implements storage.Store for Postgres on a pgx connection pool.

Column mapping:
  - TEXT    -> TEXT
  - INTEGER -> BIGINT
  - REAL    -> DOUBLE PRECISION

Tables are created in the connection's current schema.
*/
type Store struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// Open creates a pool for cfg.DSN and validates connectivity.
func Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Dialect() storage.Dialect { return Dialect{} }

func (s *Store) Connected() bool { return s != nil && s.pool != nil && !s.closed.Load() }

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil || s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}

var errClosed = errors.New("postgres: store is closed")

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if !s.Connected() {
		return nil, errClosed
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			m[f.Name] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (storage.Result, error) {
	if !s.Connected() {
		return storage.Result{}, errClosed
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return storage.Result{}, err
	}
	return storage.Result{Changes: tag.RowsAffected()}, nil
}

// Transaction runs stmts inside one pgx transaction.
func (s *Store) Transaction(ctx context.Context, stmts []storage.Statement) ([]storage.Result, error) {
	if !s.Connected() {
		return nil, errClosed
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]storage.Result, 0, len(stmts))
	for i, st := range stmts {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, &storage.StatementError{Index: i, Err: err}
		}
		out = append(out, storage.Result{Changes: tag.RowsAffected()})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) TableColumns(ctx context.Context, table string) ([]storage.ColumnInfo, error) {
	q, args := Dialect{}.ColumnsQuery(table)
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	out := make([]storage.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		name, _ := r["name"].(string)
		typ, _ := r["type"].(string)
		out = append(out, storage.ColumnInfo{Name: name, DeclaredType: typ})
	}
	return out, nil
}

// Dialect is the Postgres flavor of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return Kind }

func (Dialect) QuoteIdent(name string) string { return pgx.Identifier{name}.Sanitize() }

func (Dialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }

func (Dialect) ColumnType(a schema.Affinity) string {
	switch a {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (d Dialect) RowIDColumn(name string) string {
	return d.QuoteIdent(name) + " BIGSERIAL PRIMARY KEY"
}

func (d Dialect) LoadedAtColumn(name string) string {
	return d.QuoteIdent(name) + " TIMESTAMPTZ NOT NULL DEFAULT now()"
}

func (d Dialect) CreateTable(table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", "))
}

func (d Dialect) AddColumn(table, def string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", d.QuoteIdent(table), def)
}

func (Dialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT column_name::text AS name, data_type::text AS type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, []any{table}
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Dialect = Dialect{}
)
