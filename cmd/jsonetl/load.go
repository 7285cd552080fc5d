package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jsonetl/internal/ingest"
	"jsonetl/internal/storage"
)

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load [folder...]",
		Short: "Scan source folders and load every record into the target table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := strings.TrimSpace(a.cfg.Target)
			if target == "" {
				return fmt.Errorf("target is required (--target or target in config)")
			}
			folders, err := a.folders(args)
			if err != nil {
				return err
			}

			closeMetrics := setupMetrics(ctx, a.cfg, a.log)
			defer closeMetrics()

			st, err := storage.Open(ctx, storage.Config{Kind: a.cfg.Storage.Kind, DSN: a.cfg.Storage.DSN})
			if err != nil {
				return fmt.Errorf("open %s store: %w", a.cfg.Storage.Kind, err)
			}
			defer func() {
				if err := st.Close(); err != nil {
					a.log.Warn("close store", zap.Error(err))
				}
			}()

			ui := newProgressUI(cmd.OutOrStdout(), !a.noBars)
			opts := a.scanOptions()
			opts.OnProgress = ui.scanProgress
			svc := ingest.New(ingest.Config{Store: st, Scan: opts, Logger: a.log, Job: a.cfg.Job})

			ui.start()
			out, err := svc.ScanAndPopulate(ctx, folders, target, ingest.RunOptions{
				BatchSize: a.cfg.Load.BatchSize,
				OnEvent:   ui.event,
			})
			ui.stop()
			if err != nil {
				return err
			}

			printScanSummary(cmd.OutOrStdout(), out.Scan)
			printLoadSummary(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func printLoadSummary(w io.Writer, out *ingest.Outcome) {
	pop := out.Population
	if out.Table == nil {
		fmt.Fprintf(w, "Nothing to load into %s\n", pop.Table)
		return
	}
	verb := "Updated"
	if out.Table.Created {
		verb = "Created"
	}
	fmt.Fprintf(w, "%s table %s (%d columns", verb, out.Table.Name, len(out.Table.Columns))
	if len(out.Table.Added) > 0 {
		fmt.Fprintf(w, ", added %s", strings.Join(out.Table.Added, ", "))
	}
	fmt.Fprintln(w, ")")

	fmt.Fprintf(w, "Inserted %s of %s records in %s batches\n",
		humanize.Comma(int64(pop.InsertedRecords)),
		humanize.Comma(int64(pop.TotalRecords)),
		humanize.Comma(int64(pop.Batches)))
	for _, e := range pop.Errors {
		fmt.Fprintf(w, "  └ %s\n", e.Error())
	}
	if len(pop.DroppedColumns) > 0 {
		fmt.Fprintf(w, "Dropped fields without a column: %s\n", strings.Join(pop.DroppedColumns, ", "))
	}
}
