// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/eval-engine/internal/aggregate"
	"github.com/pdiddy/eval-engine/internal/archive"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate archived evaluations across papers",
	Long: `Aggregate loads every archived evaluation under the records directory,
groups them by paper, and reports per-domain statistics, correlation
matrices, expertise weighting effects, and the score timeline.

Malformed records are skipped and listed on stderr. The report is written
to stdout or to --out.`,
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	records, _ := cmd.Flags().GetString("records")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	if records == "" {
		records = engineCfg.Archive.Dir
	}
	if records == "" {
		records = archive.DefaultDir
	}

	loaded, err := archive.LoadDir(cmd.Context(), records)
	if err != nil {
		return err
	}
	printLoadSummary(os.Stderr, records, loaded)

	evals := archive.ToEvaluations(loaded.Payloads, engineCfg)
	report := aggregate.NewService(logger, metrics).Run(evals)
	for _, w := range report.Warnings {
		logger.Warn("aggregation limited", zap.String("kind", string(w.Kind)), zap.String("detail", w.Message))
	}

	if out == "" {
		return writeOutput(os.Stdout, format, report)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	if err := writeOutput(f, format, report); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", out)
	return nil
}

func printLoadSummary(w io.Writer, dir string, r archive.LoadResult) {
	fmt.Fprintf(w, "Loaded %d of %d records from %s\n", len(r.Payloads), r.Total(), dir)
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", s.Path, s.Reason)
	}
}

func newJSONEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func init() {
	aggregateCmd.Flags().String("records", "", "archived records directory (default: archive.dir or evaluations/records)")
	aggregateCmd.Flags().String("format", "yaml", "output format: yaml or json")
	aggregateCmd.Flags().String("out", "", "write the report to this file instead of stdout")

	rootCmd.AddCommand(aggregateCmd)
}
