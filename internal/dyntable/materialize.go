package dyntable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
)

var (
	// ErrMissingTarget is returned when the target identifier is empty.
	ErrMissingTarget = errors.New("dyntable: missing target identifier")
	// ErrStoreDisconnected is returned when the store is nil or closed.
	ErrStoreDisconnected = errors.New("dyntable: store is not connected")
	// ErrTableMissing is returned by Populate when the table has no columns.
	ErrTableMissing = errors.New("dyntable: table does not exist")
)

// Table describes the outcome of Create.
type Table struct {
	Name    string
	Columns []ColumnMapping
	// Created is true when the table did not exist before the call.
	Created bool
	// Added lists columns appended to a pre-existing table.
	Added []string
	// Remapped lists added columns whose name carries a collision suffix.
	// Another key now owns the unsuffixed name, which may have held this
	// key's data in earlier loads.
	Remapped []ColumnMapping
}

// CreateOptions controls Create.
type CreateOptions struct {
	// Logger receives collision warnings. Nil means no logging.
	Logger *zap.Logger
}

func checkCall(store storage.Store, target string) error {
	if strings.TrimSpace(target) == "" {
		return ErrMissingTarget
	}
	if store == nil || !store.Connected() {
		return ErrStoreDisconnected
	}
	return nil
}

// Create ensures the dynamic table for target exists with a column for every
// entry of cols.
//
// A new table gets the reserved columns (surrogate key, non-null source file,
// load timestamp) followed by the inferred columns. Inferred columns are
// always nullable in DDL so later, sparser loads still insert. When the
// table already exists, columns it lacks are added; existing columns are
// never altered or dropped.
//
// Errors:
//   - ErrMissingTarget, ErrStoreDisconnected for invalid calls.
//   - Any introspection or DDL failure, wrapped with the table name.
//
// Adding a suffixed column (see MapColumns) to an existing table is logged as
// a warning and reported in Table.Remapped.
func Create(ctx context.Context, store storage.Store, target string, cols []schema.Column, opts CreateOptions) (*Table, error) {
	if err := checkCall(store, target); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	d := store.Dialect()
	t := &Table{Name: TableName(target)}

	existing, err := store.TableColumns(ctx, t.Name)
	if err != nil {
		return nil, fmt.Errorf("dyntable: inspect %s: %w", t.Name, err)
	}

	affinity := make(map[string]schema.Affinity, len(cols))
	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		affinity[c.Name] = c.Type
		keys = append(keys, c.Name)
	}
	t.Columns = MapColumns(keys)

	columnDef := func(m ColumnMapping) string {
		a := affinity[m.Key]
		if !a.Valid() {
			a = schema.Text
		}
		return d.QuoteIdent(m.Column) + " " + d.ColumnType(a)
	}

	if len(existing) == 0 {
		defs := make([]string, 0, len(t.Columns)+len(reserved))
		defs = append(defs,
			d.RowIDColumn(RowIDColumn),
			d.QuoteIdent(SourceFileColumn)+" "+d.ColumnType(schema.Text)+" NOT NULL",
			d.LoadedAtColumn(LoadedAtColumn),
		)
		for _, m := range t.Columns {
			defs = append(defs, columnDef(m))
		}
		if _, err := store.Exec(ctx, d.CreateTable(t.Name, defs)); err != nil {
			return nil, fmt.Errorf("dyntable: create table %s: %w", t.Name, err)
		}
		t.Created = true
		return t, nil
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.Name)] = true
	}
	owner := make(map[string]string, len(t.Columns))
	for _, m := range t.Columns {
		owner[strings.ToLower(m.Column)] = m.Key
	}
	for _, m := range t.Columns {
		if have[strings.ToLower(m.Column)] {
			continue
		}
		if _, err := store.Exec(ctx, d.AddColumn(t.Name, columnDef(m))); err != nil {
			return nil, fmt.Errorf("dyntable: add column %s.%s: %w", t.Name, m.Column, err)
		}
		t.Added = append(t.Added, m.Column)

		if base := Sanitize(m.Key); !strings.EqualFold(base, m.Column) {
			t.Remapped = append(t.Remapped, m)
			log.Warn("column name collision on existing table",
				zap.String("table", t.Name),
				zap.String("key", m.Key),
				zap.String("column", m.Column),
				zap.String("base_column", base),
				zap.String("base_owner", owner[strings.ToLower(base)]))
		}
	}
	return t, nil
}
