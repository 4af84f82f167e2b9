package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/export"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
)

var (
	exportOut    string
	exportFormat string
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export CURRENT PRIOR",
	Short: "Export the variance table as CSV or Excel",
	Long: `Reconcile two trial balances and write the variance table.

Columns: Account Code, Account Name (current), Balance_Last, Balance_Current,
Variance Amount, Variance %, Variance Highlighted.

Without --out the file is written under the configured export directory,
grouped by year and month.

Example:
  tb-variance export current.csv prior.csv --out variance.csv
  tb-variance export current.xlsx prior.xlsx --format xlsx`,
	Args: cobra.ExactArgs(2),
	Run:  runExport,
}

func init() {
	addVarianceFlags(exportCmd.Flags())
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (.csv or .xlsx)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format when --out is not set: csv or xlsx")
}

func runExport(cmd *cobra.Command, args []string) {
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

	path := exportOut
	if path == "" {
		format, err := export.ParseFormat(exportFormat)
		exitOnError(err, "invalid export format")

		resolver := newPathResolver(cfg)
		path, err = resolver.GetExportPath(exportLabel(args[0]), string(format), time.Now())
		exitOnError(err, "failed to resolve export path")
		exitOnError(resolver.EnsureParentDir(path), "failed to create export directory")
	}

	if newPathResolver(cfg).FileExists(path) {
		slog.Warn("Overwriting existing export", "path", path)
	}
	exitOnError(writeExport(path, result), "failed to export report")

	slog.Info("Export completed", "path", path, "rows", len(result.Rows), "flagged", result.FlaggedCount())
	fmt.Println(path)
}
