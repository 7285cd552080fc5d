package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jsonetl/internal/ingest"
	"jsonetl/internal/scan"
)

func newScanCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan [folder...]",
		Short: "Scan source folders and print the inferred columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := a.folders(args)
			if err != nil {
				return err
			}

			opts := a.scanOptions()
			ui := newProgressUI(cmd.OutOrStdout(), !a.noBars && !asJSON)
			opts.OnProgress = ui.scanProgress
			svc := ingest.New(ingest.Config{Scan: opts, Logger: a.log, Job: a.cfg.Job})

			ui.start()
			res, err := svc.ScanSourceFolders(cmd.Context(), folders)
			ui.stop()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printColumns(cmd.OutOrStdout(), res)
			printScanSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the scan results as JSON")
	return cmd
}

func printColumns(w io.Writer, res *scan.Results) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLABLE\tSAMPLES")
	for _, c := range res.Columns {
		samples := make([]string, len(c.Samples))
		for i, s := range c.Samples {
			samples[i] = fmt.Sprint(s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", c.Name, c.Type, c.Nullable, strings.Join(samples, ", "))
	}
	_ = tw.Flush()
}

func printScanSummary(w io.Writer, res *scan.Results) {
	fmt.Fprintf(w, "\nScanned %s records from %s of %s files (%s file errors, %s skipped records)\n",
		humanize.Comma(int64(res.TotalRecords)),
		humanize.Comma(int64(res.ProcessedFiles)),
		humanize.Comma(int64(res.TotalFiles)),
		humanize.Comma(int64(res.FileErrors)),
		humanize.Comma(int64(res.Warnings)))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  └ %s\n", e.Error())
	}
}
