package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/tui"
)

var tuiOut string

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui [CURRENT] [PRIOR]",
	Short: "Explore the variance report interactively",
	Long: `Open an interactive terminal view of the report.

Keys:
- tab / 1-4   switch between P&L, Balance Sheet, Variance and Questions
- + / -       raise or lower the threshold by one percent (0-50)
- p           toggle percent_only / percent_or_absolute
- e           export the variance table
- q           quit

Example:
  tb-variance tui current.xlsx prior.xlsx`,
	Args: cobra.MaximumNArgs(2),
	Run:  runTUI,
}

func init() {
	addVarianceFlags(tuiCmd.Flags())
	tuiCmd.Flags().StringVarP(&tuiOut, "out", "o", "", "export file for the e key (default under the export directory)")
}

func runTUI(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if err := cfg.Validate(); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pcfg, err := cfg.Pipeline()
	exitOnError(err, "failed to build pipeline configuration")

	current, prior, err := loadTables(args)
	exitOnError(err, "failed to load trial balance")

	path := tuiOut
	if path == "" {
		label := "report"
		if len(args) > 0 {
			label = exportLabel(args[0])
		}
		resolver := newPathResolver(cfg)
		path, err = resolver.GetExportPath(label, "csv", time.Now())
		exitOnError(err, "failed to resolve export path")
		exitOnError(resolver.EnsureParentDir(path), "failed to create export directory")
	}

	exitOnError(tui.Run(tui.New(current, prior, pcfg, path)), "terminal view failed")
}
