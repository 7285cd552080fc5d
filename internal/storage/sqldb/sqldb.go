// Package sqldb implements storage.Store on top of database/sql. Backends that
// ship a database/sql driver (sqlite, mssql, mysql) reuse it with their own
// storage.Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"jsonetl/internal/storage"
)

// Store implements storage.Store for a *sql.DB.
type Store struct {
	db      dbConn
	dialect storage.Dialect
	closed  atomic.Bool
}

// Open opens driverName with dsn, applies tune (if non-nil) and validates
// connectivity via PingContext.
func Open(ctx context.Context, driverName, dsn string, d storage.Dialect, tune func(*sql.DB)) (*Store, error) {
	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if tune != nil {
		tune(raw)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return New(raw, d), nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, d storage.Dialect) *Store {
	return &Store{db: &sqlDB{db: db}, dialect: d}
}

func (s *Store) Dialect() storage.Dialect { return s.dialect }

func (s *Store) Connected() bool { return s != nil && s.db != nil && !s.closed.Load() }

func (s *Store) Close() error {
	if s == nil || s.db == nil || s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

var errClosed = errors.New("sqldb: store is closed")

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if !s.Connected() {
		return nil, errClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (storage.Result, error) {
	if !s.Connected() {
		return storage.Result{}, errClosed
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storage.Result{}, err
	}
	return storage.Result{Changes: rowsAffected(res)}, nil
}

// Transaction executes stmts in one database transaction. Any failure rolls
// back every statement.
func (s *Store) Transaction(ctx context.Context, stmts []storage.Statement) ([]storage.Result, error) {
	if !s.Connected() {
		return nil, errClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]storage.Result, 0, len(stmts))
	for i, st := range stmts {
		res, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, &storage.StatementError{Index: i, Err: err}
		}
		out = append(out, storage.Result{Changes: rowsAffected(res)})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) TableColumns(ctx context.Context, table string) ([]storage.ColumnInfo, error) {
	q, args := s.dialect.ColumnsQuery(table)
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return ColumnInfos(rows), nil
}

// ColumnInfos converts introspection rows (name, type) to ColumnInfo, keeping
// row order. Rows are read by the first two columns of the dialect query,
// which every dialect aliases as "name" and "type".
func ColumnInfos(rows []map[string]any) []storage.ColumnInfo {
	out := make([]storage.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		name, _ := r["name"].(string)
		typ, _ := r["type"].(string)
		if name == "" {
			continue
		}
		out = append(out, storage.ColumnInfo{Name: name, DeclaredType: typ})
	}
	return out
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ storage.Store = (*Store)(nil)
	_ dbConn        = (*sqlDB)(nil)
)
