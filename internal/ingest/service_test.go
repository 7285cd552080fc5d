package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jsonetl/internal/dyntable"
	"jsonetl/internal/metrics"
	"jsonetl/internal/scan"
	"jsonetl/internal/storage"
	"jsonetl/internal/storage/sqlite"
	"jsonetl/pkg/records"
)

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), storage.Config{Kind: sqlite.Kind})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for p, body := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte(body), 0o644))
	}
	return fsys
}

func newService(t *testing.T, st storage.Store, fsys afero.Fs) *Service {
	t.Helper()
	return New(Config{
		Store:  st,
		Scan:   scan.Options{Fs: fsys},
		Logger: zaptest.NewLogger(t),
		Job:    "test",
	})
}

// phases returns the phase-transition events, skipping sub-progress.
func phases(events []Event) []Phase {
	var out []Phase
	for _, e := range events {
		if e.Scan == nil && e.Load == nil {
			out = append(out, e.Phase)
		}
	}
	return out
}

func TestScanAndPopulate_EndToEnd(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	fsys := memTree(t, map[string]string{
		"/src/users.json":    `[{"id":1,"user-name":"ann","meta":{"score":1.5}},{"id":2,"user-name":"bob"}]`,
		"/src/more.jsonl":    "{\"id\":3,\"user-name\":\"cy\"}\n{oops\n",
		"/src/bad.json":      `[1,2`,
		"/src/items.ddbjson": `{"Item":{"id":{"N":"4"},"user-name":{"S":"dee"}}}`,
	})
	svc := newService(t, st, fsys)

	var events []Event
	out, err := svc.ScanAndPopulate(ctx, []scan.SourceFolder{{Path: "/src"}}, "view #1", RunOptions{
		BatchSize: 2,
		OnEvent:   func(e Event) { events = append(events, e) },
	})
	require.NoError(t, err)

	assert.Equal(t, []Phase{PhaseScanning, PhaseTableCreation, PhasePopulation, PhaseCompleted}, phases(events))

	var batches int
	for _, e := range events {
		if e.Load != nil {
			batches++
		}
	}
	assert.Equal(t, 2, batches)

	assert.Equal(t, 4, out.Scan.TotalFiles)
	assert.Equal(t, 3, out.Scan.ProcessedFiles)
	assert.Equal(t, 1, out.Scan.FileErrors)
	assert.Equal(t, "view #1", out.Scan.TargetID)
	assert.True(t, out.Table.Created)
	assert.Equal(t, "jsonetl_view__1", out.Table.Name)
	assert.Equal(t, 4, out.Population.InsertedRecords)
	assert.Empty(t, out.Population.Errors)

	rows, err := st.Query(ctx, `SELECT "id", "user_name", "meta_score", "_source_file" FROM "jsonetl_view__1" ORDER BY "id"`)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ann", rows[0]["user_name"])
	assert.EqualValues(t, 1.5, rows[0]["meta_score"])
	assert.Nil(t, rows[1]["meta_score"])
	assert.Equal(t, "/src/items.ddbjson", rows[3]["_source_file"])

	assert.Same(t, out.Scan, svc.LastScan())
	log := svc.ErrorLog()
	require.Len(t, log, 1)
	assert.Contains(t, log[0], "/src/bad.json")
}

// TestScanAndPopulate_LastScanCarriesTarget reads LastScan while a run is in
// flight. Any cached results must already name the target.
func TestScanAndPopulate_LastScanCarriesTarget(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	fsys := memTree(t, map[string]string{
		"/src/a.json": `[{"id":1},{"id":2},{"id":3}]`,
	})
	svc := newService(t, st, fsys)

	done := make(chan struct{})
	var wg sync.WaitGroup
	var seenWrong bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if res := svc.LastScan(); res != nil && res.TargetID != "orders" {
				seenWrong = true
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()

	out, err := svc.ScanAndPopulate(ctx, []scan.SourceFolder{{Path: "/src"}}, "orders", RunOptions{BatchSize: 1})
	close(done)
	wg.Wait()
	require.NoError(t, err)

	assert.False(t, seenWrong, "LastScan exposed results without the target")
	assert.Equal(t, "orders", svc.LastScan().TargetID)
	assert.Same(t, out.Scan, svc.LastScan())
}

func TestScanAndPopulate_EmptyRootCompletesWithoutTable(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/empty", 0o755))
	svc := newService(t, st, fsys)

	var events []Event
	out, err := svc.ScanAndPopulate(ctx, []scan.SourceFolder{{Path: "/empty"}}, "t", RunOptions{
		OnEvent: func(e Event) { events = append(events, e) },
	})
	require.NoError(t, err)

	assert.Equal(t, []Phase{PhaseScanning, PhaseCompleted}, phases(events))
	assert.Zero(t, out.Scan.TotalFiles)
	assert.Zero(t, out.Scan.TotalRecords)
	assert.Nil(t, out.Table)
	require.NotNil(t, out.Population)
	assert.Zero(t, out.Population.InsertedRecords)

	cols, err := st.TableColumns(ctx, dyntable.TableName("t"))
	require.NoError(t, err)
	assert.Empty(t, cols, "no table is created for an empty scan")
}

func TestScanAndPopulate_InvalidCalls(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	svc := newService(t, st, afero.NewMemMapFs())

	_, err := svc.ScanAndPopulate(ctx, nil, "", RunOptions{})
	assert.ErrorIs(t, err, dyntable.ErrMissingTarget)

	closed := openStore(t)
	require.NoError(t, closed.Close())
	_, err = newService(t, closed, afero.NewMemMapFs()).ScanAndPopulate(ctx, nil, "t", RunOptions{})
	assert.ErrorIs(t, err, dyntable.ErrStoreDisconnected)

	release, err := svc.acquire("t")
	require.NoError(t, err)
	_, err = svc.ScanAndPopulate(ctx, nil, "t", RunOptions{})
	assert.ErrorIs(t, err, ErrTargetBusy)
	release()

	_, err = svc.ScanAndPopulate(ctx, nil, "t", RunOptions{})
	assert.NoError(t, err)
}

func TestScanSourceFolders_ErrorLogResetPerScan(t *testing.T) {
	ctx := context.Background()
	fsys := memTree(t, map[string]string{
		"/bad/x.json":  `{`,
		"/good/y.json": `{"a":1}`,
	})
	svc := newService(t, openStore(t), fsys)

	res, err := svc.ScanSourceFolders(ctx, []scan.SourceFolder{{Path: "/bad"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileErrors)
	assert.Len(t, svc.ErrorLog(), 1)

	res, err = svc.ScanSourceFolders(ctx, []scan.SourceFolder{{Path: "/good"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRecords)
	assert.Empty(t, svc.ErrorLog())
	assert.Same(t, res, svc.LastScan())
}

type failSecondTx struct {
	storage.Store
	calls int
}

func (f *failSecondTx) Transaction(ctx context.Context, stmts []storage.Statement) ([]storage.Result, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("database is locked")
	}
	return f.Store.Transaction(ctx, stmts)
}

type countingBackend struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (c *countingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name
	for _, l := range []string{"kind", "status", "outcome", "step"} {
		if v, ok := labels[l]; ok {
			key += "|" + l + "=" + v
		}
	}
	c.counts[key] += delta
}

func (c *countingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (c *countingBackend) Flush() error                                     { return nil }

func TestPopulateDataTable_BatchFailureAndMetrics(t *testing.T) {
	ctx := context.Background()
	cb := &countingBackend{counts: map[string]float64{}}
	metrics.SetBackend(cb)
	t.Cleanup(metrics.Reset)

	base := openStore(t)
	lines := make([]string, 2500)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"n":%d}`, i)
	}
	fsys := memTree(t, map[string]string{"/big/data.jsonl": strings.Join(lines, "\n")})

	st := &failSecondTx{Store: base}
	svc := newService(t, st, fsys)

	out, err := svc.ScanAndPopulate(ctx, []scan.SourceFolder{{Path: "/big"}}, "big", RunOptions{BatchSize: 1000})
	require.NoError(t, err)

	pop := out.Population
	assert.Equal(t, 2500, pop.TotalRecords)
	assert.Equal(t, 1500, pop.InsertedRecords)
	assert.Equal(t, 3, pop.Batches)
	require.Len(t, pop.Errors, 1)
	assert.Equal(t, 1000, pop.Errors[0].Start)
	assert.Equal(t, 2000, pop.Errors[0].End)
	assert.Len(t, svc.ErrorLog(), 1)

	rows, err := base.Query(ctx, `SELECT COUNT(*) AS n FROM "jsonetl_big"`)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, rows[0]["n"])

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.Equal(t, 2500.0, cb.counts[metrics.RecordsTotal+"|kind=scanned"])
	assert.Equal(t, 1500.0, cb.counts[metrics.RecordsTotal+"|kind=inserted"])
	assert.Equal(t, 1000.0, cb.counts[metrics.RecordsTotal+"|kind=failed"])
	assert.Equal(t, 2.0, cb.counts[metrics.BatchesTotal+"|status=success"])
	assert.Equal(t, 1.0, cb.counts[metrics.BatchesTotal+"|status=failure"])
	assert.Equal(t, 1.0, cb.counts[metrics.FilesTotal+"|outcome=processed"])
	assert.Equal(t, 1.0, cb.counts[metrics.StepTotal+"|status=success|step=population"])
}

func TestPopulateDataTable_TableMissing(t *testing.T) {
	svc := newService(t, openStore(t), afero.NewMemMapFs())
	recs := []records.Record{{"a": int64(1)}}
	_, err := svc.PopulateDataTable(context.Background(), "nope", recs, RunOptions{})
	require.ErrorIs(t, err, dyntable.ErrTableMissing)
	assert.Len(t, svc.ErrorLog(), 1)
}
