package postgres

import (
	"strings"
	"testing"

	"jsonetl/internal/schema"
	"jsonetl/internal/storage"
)

func TestDialect_CreateTable(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	sql := d.CreateTable("jsonetl_orders", []string{
		d.RowIDColumn("_row_id"),
		d.QuoteIdent("_source_file") + " " + d.ColumnType(schema.Text) + " NOT NULL",
		d.LoadedAtColumn("_loaded_at"),
		d.QuoteIdent("user.name") + " " + d.ColumnType(schema.Text),
		d.QuoteIdent("score") + " " + d.ColumnType(schema.Real),
	})

	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "jsonetl_orders"`,
		`"_row_id" BIGSERIAL PRIMARY KEY`,
		`"_source_file" TEXT NOT NULL`,
		`"_loaded_at" TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`"user.name" TEXT`,
		`"score" DOUBLE PRECISION`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("DDL missing %q:\n%s", want, sql)
		}
	}
}

func TestDialect_InsertAndAlter(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	if got := storage.InsertQuery(d, "t", []string{"a", "b"}); got != `INSERT INTO "t" ("a", "b") VALUES ($1, $2)` {
		t.Fatalf("InsertQuery=%s", got)
	}
	if got := d.AddColumn("t", `"c" BIGINT`); got != `ALTER TABLE "t" ADD COLUMN IF NOT EXISTS "c" BIGINT` {
		t.Fatalf("AddColumn=%s", got)
	}
	if got := d.QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdent=%s", got)
	}
}
