package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Result reports the outcome of one non-query statement.
type Result struct {
	Changes int64
}

// Statement is one parameterized SQL statement.
type Statement struct {
	SQL  string
	Args []any
}

// ColumnInfo describes one existing table column.
type ColumnInfo struct {
	Name         string
	DeclaredType string
}

// Store is the relational store the pipeline writes into.
//
// Each backend implements these semantics with its own driver. Identifiers are
// never parameterized; callers quote them through Dialect.
type Store interface {
	// Query runs a statement that returns rows. Each row maps column name to
	// value; []byte values are returned as string.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// Transaction runs stmts atomically: all commit or none do. A failing
	// statement is reported as *StatementError.
	Transaction(ctx context.Context, stmts []Statement) ([]Result, error)

	// Connected reports whether the store can accept work.
	Connected() bool

	// TableColumns returns the existing columns of table in ordinal order, or
	// an empty slice if the table does not exist.
	TableColumns(ctx context.Context, table string) ([]ColumnInfo, error)

	// Dialect returns the SQL flavor of the store.
	Dialect() Dialect

	// Close releases backend resources. Call once.
	Close() error
}

// StatementError identifies the statement that failed inside a Transaction.
type StatementError struct {
	Index int
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// ---- factories ----

// Factory opens a Store for cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "sqlite", "postgres").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
