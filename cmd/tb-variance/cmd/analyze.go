package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/db"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/export"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/report"
)

var (
	saveReport  bool
	reportLabel string
	analyzeOut  string
)

// analyzeCmd represents the analyze command.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [CURRENT] [PRIOR]",
	Short: "Analyze variances between two trial balances",
	Long: `Reconcile the current and prior period trial balances and print the report.

The report contains:
- Profit & Loss statement of the current period
- Balance sheet of the current period
- Variance table with flagged accounts
- One question per flagged account

When a file is missing, a prompt to supply both files is printed instead.

Example:
  tb-variance analyze current.xlsx prior.xlsx
  tb-variance analyze current.csv prior.csv --policy percent_or_absolute --absolute 500
  tb-variance analyze current.csv prior.csv --save --label "March close"`,
	Args: cobra.MaximumNArgs(2),
	Run:  runAnalyze,
}

func init() {
	addVarianceFlags(analyzeCmd.Flags())
	analyzeCmd.Flags().BoolVar(&saveReport, "save", false, "save the report to the local archive")
	analyzeCmd.Flags().StringVar(&reportLabel, "label", "", "label for the saved report")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "also export the variance table to this file (.csv or .xlsx)")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	slog.Info("Starting analysis", "inputs", describeArgs(args))

	cfg := loadConfig(cmd)
	if err := cfg.Validate(); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pcfg, err := cfg.Pipeline()
	exitOnError(err, "failed to build pipeline configuration")

	current, prior, err := loadTables(args)
	exitOnError(err, "failed to load trial balance")

	result, err := pipeline.Compute(current, prior, pcfg)
	exitOnError(err, "failed to compute variances")

	fmt.Print(report.New(pcfg.CurrencySymbol).Render(result))

	if !result.Ready() {
		return
	}

	if analyzeOut != "" {
		exitOnError(writeExport(analyzeOut, result), "failed to export report")
		fmt.Printf("\nExported variance table to %s\n", analyzeOut)
	}

	if saveReport {
		withArchive(cfg, "failed to save report", func(ctx context.Context, archive *db.ReportArchive) error {
			summary, err := archive.SaveReport(ctx, reportLabel, "", result)
			if err != nil {
				return err
			}
			fmt.Printf("\nSaved report %s (%s)\n", summary.ID, summary.Label)
			return nil
		})
	}

	slog.Info("Analysis completed", "rows", len(result.Rows), "flagged", result.FlaggedCount())
}

// writeExport writes the variance table to path, choosing the format by extension.
func writeExport(path string, result pipeline.Result) error {
	return writeRows(path, result.Rows)
}

func writeRows(path string, rows []reconcile.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := export.Write(f, rows, export.FormatFromPath(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
