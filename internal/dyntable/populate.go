package dyntable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
	"jsonetl/internal/transformer"
	"jsonetl/pkg/records"
)

// DefaultBatchSize is the number of records per insert transaction.
const DefaultBatchSize = 1000

// PopulateOptions controls Populate.
type PopulateOptions struct {
	// BatchSize <= 0 means DefaultBatchSize.
	BatchSize int
	// OnProgress, if set, is called after every batch.
	OnProgress func(LoadProgress)
	Logger     *zap.Logger
}

// LoadProgress is emitted once per batch.
type LoadProgress struct {
	Batch        int
	TotalBatches int
	Processed    int
	Total        int
	Inserted     int
	Errors       int
}

// BatchError records one failed batch. Start and End bound the half-open
// record range [Start, End) the batch covered. RecordIndex is the record whose
// statement failed, or -1 when the failure was not tied to one statement.
type BatchError struct {
	Batch       int    `json:"batch"`
	RecordIndex int    `json:"record_index"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Message     string `json:"message"`
}

func (e BatchError) Error() string {
	if e.RecordIndex >= 0 {
		return fmt.Sprintf("batch %d (records %d-%d), record %d: %s", e.Batch, e.Start, e.End-1, e.RecordIndex, e.Message)
	}
	return fmt.Sprintf("batch %d (records %d-%d): %s", e.Batch, e.Start, e.End-1, e.Message)
}

// PopulationResults summarizes one Populate call.
type PopulationResults struct {
	Table           string       `json:"table"`
	TotalRecords    int          `json:"total_records"`
	InsertedRecords int          `json:"inserted_records"`
	Batches         int          `json:"batches"`
	Errors          []BatchError `json:"errors,omitempty"`
	// DroppedColumns lists record keys that have no column in the table.
	DroppedColumns []string `json:"dropped_columns,omitempty"`
}

// target column for one bound value
type bindColumn struct {
	key      string
	column   string
	affinity schema.Affinity
}

// Populate inserts recs into the dynamic table of target.
//
// Records are split into batches of opts.BatchSize; each batch runs as one
// transaction holding one INSERT per record. A failing batch is rolled back,
// recorded in Errors and the next batch proceeds, so InsertedRecords is
// always a multiple of whole batches. Keys without a matching column are
// reported in DroppedColumns instead of failing the load. The source file
// column is bound from the record's provenance.
//
// Errors:
//   - ErrMissingTarget, ErrStoreDisconnected for invalid calls.
//   - ErrTableMissing when the table has no columns; nothing is attempted.
//   - ctx.Err() when ctx ends; results cover the batches finished so far.
func Populate(ctx context.Context, store storage.Store, target string, recs []records.Record, opts PopulateOptions) (*PopulationResults, error) {
	if err := checkCall(store, target); err != nil {
		return nil, err
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	table := TableName(target)
	res := &PopulationResults{Table: table, TotalRecords: len(recs)}

	existing, err := store.TableColumns(ctx, table)
	if err != nil {
		return res, fmt.Errorf("dyntable: inspect %s: %w", table, err)
	}
	if len(existing) == 0 {
		return res, fmt.Errorf("%w: %s", ErrTableMissing, table)
	}
	if len(recs) == 0 {
		return res, nil
	}

	declared := make(map[string]storage.ColumnInfo, len(existing))
	for _, c := range existing {
		declared[strings.ToLower(c.Name)] = c
	}
	src, ok := declared[SourceFileColumn]
	if !ok {
		return res, fmt.Errorf("dyntable: %s has no %s column", table, SourceFileColumn)
	}

	cols := []bindColumn{{column: src.Name, affinity: schema.Text}}
	for _, m := range MapColumns(unionKeys(recs)) {
		c, ok := declared[strings.ToLower(m.Column)]
		if !ok {
			res.DroppedColumns = append(res.DroppedColumns, m.Key)
			continue
		}
		cols = append(cols, bindColumn{key: m.Key, column: c.Name, affinity: storage.AffinityOf(c.DeclaredType)})
	}
	if len(res.DroppedColumns) > 0 {
		log.Warn("record keys without table column",
			zap.String("table", table),
			zap.Strings("keys", res.DroppedColumns))
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.column
	}
	query := storage.InsertQuery(store.Dialect(), table, names)

	total := (len(recs) + size - 1) / size
	rows := make([]*transformer.Row, 0, size)
	stmts := make([]storage.Statement, 0, size)

	for b, start := 0, 0; start < len(recs); b, start = b+1, start+size {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+size, len(recs))

		rows, stmts = rows[:0], stmts[:0]
		for i := start; i < end; i++ {
			row := transformer.GetRow(len(cols))
			row.Index = i
			bindRecord(row, recs[i], cols)
			rows = append(rows, row)
			stmts = append(stmts, storage.Statement{SQL: query, Args: row.V})
		}

		_, txErr := store.Transaction(ctx, stmts)
		res.Batches++

		if txErr != nil && ctx.Err() != nil {
			for _, r := range rows {
				r.Drop()
			}
			return res, ctx.Err()
		}
		for _, r := range rows {
			r.Free()
		}

		if txErr != nil {
			be := BatchError{Batch: b, RecordIndex: -1, Start: start, End: end, Message: txErr.Error()}
			var se *storage.StatementError
			if errors.As(txErr, &se) {
				be.RecordIndex = start + se.Index
				be.Message = se.Err.Error()
			}
			res.Errors = append(res.Errors, be)
			log.Warn("batch rolled back",
				zap.String("table", table),
				zap.Int("batch", b),
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Error(txErr))
		} else {
			res.InsertedRecords += end - start
		}

		if opts.OnProgress != nil {
			opts.OnProgress(LoadProgress{
				Batch:        b + 1,
				TotalBatches: total,
				Processed:    end,
				Total:        len(recs),
				Inserted:     res.InsertedRecords,
				Errors:       len(res.Errors),
			})
		}
	}
	return res, nil
}

func bindRecord(row *transformer.Row, rec records.Record, cols []bindColumn) {
	row.V[0] = rec.SourceFile()
	for i := 1; i < len(cols); i++ {
		v, ok := rec[cols[i].key]
		if !ok || v == nil {
			continue
		}
		row.V[i] = storage.BindValue(v, cols[i].affinity)
	}
}

func unionKeys(recs []records.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range recs {
		for k := range r {
			if records.IsInternal(k) {
				continue
			}
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
