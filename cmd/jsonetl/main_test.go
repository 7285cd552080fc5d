package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsonetl/internal/scan"
	"jsonetl/internal/storage"
	"jsonetl/internal/storage/sqlite"
)

// run executes the CLI and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func sampleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"orders.json":        `[{"id":1,"user":{"name":"ann"},"total":9.5},{"id":2,"user":{"name":"bob"}}]`,
		"more/orders.jsonl":  "{\"id\":3,\"total\":1}\n",
		"more/skip.txt":      "not a record file",
		"node_modules/x.json": `{"id":99}`,
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func countRows(t *testing.T, dsn, table string) int64 {
	t.Helper()
	st, err := sqlite.Open(context.Background(), storage.Config{Kind: sqlite.Kind, DSN: dsn})
	require.NoError(t, err)
	defer st.Close()
	rows, err := st.Query(context.Background(), "SELECT COUNT(*) AS n FROM "+st.Dialect().QuoteIdent(table))
	require.NoError(t, err)
	return rows[0]["n"].(int64)
}

func TestLoad_EndToEnd(t *testing.T) {
	dir := sampleDir(t)
	db := filepath.Join(t.TempDir(), "out.db")

	out, _, err := run(t, "load", dir, "--dsn", db, "--target", "orders", "--batch-size", "2", "--no-progress")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Scanned 3 records from 2 of 2 files")
	assert.Contains(t, out, "Created table jsonetl_orders (3 columns)")
	assert.Contains(t, out, "Inserted 3 of 3 records in 2 batches")
	assert.EqualValues(t, 3, countRows(t, db, "jsonetl_orders"))

	// A second load appends to the existing table.
	out, _, err = run(t, "load", dir, "--dsn", db, "--target", "orders", "--no-progress")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Updated table jsonetl_orders")
	assert.EqualValues(t, 6, countRows(t, db, "jsonetl_orders"))
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := sampleDir(t)
	db := filepath.Join(t.TempDir(), "cfg.db")
	cfg := filepath.Join(t.TempDir(), "jsonetl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"target: \"view #1\"\nsources: ["+dir+"]\nstorage:\n  kind: sqlite\n  dsn: "+db+"\n"), 0o644))

	out, _, err := run(t, "load", "--config", cfg, "--no-progress")
	require.NoError(t, err, out)
	assert.EqualValues(t, 3, countRows(t, db, "jsonetl_view__1"))
}

func TestLoad_EmptyFolder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	out, _, err := run(t, "load", t.TempDir(), "--dsn", db, "--target", "t", "--no-progress")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Nothing to load into jsonetl_t")
}

func TestLoad_Errors(t *testing.T) {
	dir := sampleDir(t)
	db := filepath.Join(t.TempDir(), "x.db")

	_, _, err := run(t, "load", dir, "--dsn", db, "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target is required")

	_, _, err = run(t, "load", "--dsn", db, "--target", "t", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source folders")

	_, stderr, err := run(t, "load", dir, "--dsn", db, "--target", "t", "--metrics-backend", "statsd")
	require.Error(t, err)
	assert.Contains(t, stderr, "error: metrics.backend")

	_, _, err = run(t, "load", dir, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestScan_PrintsColumns(t *testing.T) {
	dir := sampleDir(t)

	out, _, err := run(t, "scan", dir, "--no-progress")
	require.NoError(t, err, out)
	assert.Contains(t, out, "COLUMN")
	assert.Regexp(t, `id\s+INTEGER\s+false\s+3, 1, 2`, out)
	assert.Regexp(t, `total\s+REAL\s+true`, out)
	assert.Regexp(t, `user\.name\s+TEXT\s+true\s+ann, bob`, out)
}

func TestScan_JSON(t *testing.T) {
	out, _, err := run(t, "scan", sampleDir(t), "--json", "--max-depth", "1")
	require.NoError(t, err)

	var res scan.Results
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.ProcessedFiles)
	names := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "total", "user"}, names)
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "validate", "--batch-size=-1")
	require.Error(t, err)
	assert.Contains(t, out, "error: load.batch_size")

	out, _, err = run(t, "validate", "--dsn", "x.db")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}
