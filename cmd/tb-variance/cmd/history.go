package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/db"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/narrator"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/report"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

var (
	historyLimit int
	historyOut   string
)

// historyCmd groups the report archive commands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved variance reports",
	Long: `List, show, re-export and delete reports saved with "analyze --save".

Example:
  tb-variance history list
  tb-variance history show 3f2b...
  tb-variance history export 3f2b... --out march.xlsx
  tb-variance history stats`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	Args:  cobra.NoArgs,
	Run:   runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a saved report",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Export a saved report as CSV or Excel",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryExport,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a saved report",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryDelete,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display archive statistics",
	Args:  cobra.NoArgs,
	Run:   runHistoryStats,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of reports to list (0 for all)")
	historyExportCmd.Flags().StringVarP(&historyOut, "out", "o", "", "output file (.csv or .xlsx)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	withArchive(cfg, "failed to list reports", func(ctx context.Context, archive *db.ReportArchive) error {
		reports, err := archive.ListReports(ctx, historyLimit)
		if err != nil {
			return err
		}

		if len(reports) == 0 {
			fmt.Println("No saved reports.")
			return nil
		}

		for _, r := range reports {
			fmt.Printf("%s  %s  %-24s %d/%d flagged  (%s vs %s)\n",
				r.ID,
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.Label,
				r.FlaggedCount,
				r.AccountCount,
				r.CurrentSource,
				r.PriorSource,
			)
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	withArchive(cfg, "failed to show report", func(ctx context.Context, archive *db.ReportArchive) error {
		summary, err := getReport(ctx, archive, args[0])
		if err != nil {
			return err
		}

		rows, err := archive.GetRows(ctx, summary.ID)
		if err != nil {
			return err
		}

		renderer := report.New(cfg.Display.CurrencySymbol)
		narrative := narrator.New(cfg.Display.CurrencySymbol, cfg.Display.PeriodLabel).Narrate(rows)

		fmt.Printf("Report %s: %s\n", summary.ID, summary.Label)
		fmt.Printf("Saved:   %s\n", summary.CreatedAt.Local().Format(time.RFC1123))
		fmt.Printf("Current: %s   Prior: %s\n", summary.CurrentSource, summary.PriorSource)
		fmt.Printf("Policy:  %s\n\n", thresholdLine(summary))
		fmt.Println(renderer.Variance(rows))
		fmt.Println()
		fmt.Print(report.Questions(narrative))
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	withArchive(cfg, "failed to export report", func(ctx context.Context, archive *db.ReportArchive) error {
		summary, err := getReport(ctx, archive, args[0])
		if err != nil {
			return err
		}

		rows, err := archive.GetRows(ctx, summary.ID)
		if err != nil {
			return err
		}

		path := historyOut
		if path == "" {
			resolver := newPathResolver(cfg)
			if path, err = resolver.GetExportPath(summary.Label, "csv", summary.CreatedAt); err != nil {
				return err
			}
			if err := resolver.EnsureParentDir(path); err != nil {
				return err
			}
		}

		if err := writeRows(path, rows); err != nil {
			return err
		}

		slog.Info("Export completed", "report_id", summary.ID, "path", path)
		fmt.Println(path)
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	withArchive(cfg, "failed to delete report", func(ctx context.Context, archive *db.ReportArchive) error {
		deleted, err := archive.DeleteReport(ctx, args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no report with ID %s", args[0])
		}

		fmt.Printf("Deleted report %s\n", args[0])
		return nil
	})
}

func runHistoryStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	withArchive(cfg, "failed to get statistics", func(ctx context.Context, archive *db.ReportArchive) error {
		stats, err := archive.GetStats(ctx)
		if err != nil {
			return err
		}

		lastID, err := archive.GetMetadata(ctx, db.MetadataLastReport)
		if err != nil {
			return err
		}

		// Display statistics
		fmt.Println("\n=== Archive Statistics ===")
		fmt.Printf("Data root:         %s\n", newPathResolver(cfg).GetRoot())
		fmt.Printf("Saved reports:     %d\n", stats.TotalReports)
		fmt.Printf("Accounts archived: %d\n", stats.TotalAccounts)
		fmt.Printf("Flagged accounts:  %d\n", stats.TotalFlagged)

		if stats.LastSaved.Valid {
			fmt.Printf("Last saved:        %s (%s)\n", stats.LastSaved.String, lastID)
		} else {
			fmt.Printf("Last saved:        (never)\n")
		}

		fmt.Println()
		return nil
	})
}

// thresholdLine describes the thresholds a report was saved with. The absolute amount
// only appears under percent_or_absolute.
func thresholdLine(summary *db.ReportSummary) string {
	th := summary.Thresholds
	line := fmt.Sprintf("%s, threshold %s%%", th.Policy, th.ThresholdPercent)
	if th.Policy == variance.PolicyPercentOrAbsolute && th.AbsoluteThreshold.Valid {
		line += fmt.Sprintf(", absolute %s", th.AbsoluteThreshold.Decimal)
	}
	return line + fmt.Sprintf(" (%d of %d accounts flagged)", summary.FlaggedCount, summary.AccountCount)
}

// getReport loads a report summary, treating an unknown ID as an error.
func getReport(ctx context.Context, archive *db.ReportArchive, id string) (*db.ReportSummary, error) {
	summary, err := archive.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("no report with ID %s", id)
	}
	return summary, nil
}
