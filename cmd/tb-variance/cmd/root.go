// Package cmd provides CLI commands for tb-variance.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	settingsFile string
	debug        bool

	logLevel = new(slog.LevelVar)
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tb-variance",
	Short: "Compare two trial balances and explain significant variances",
	Long: `tb-variance reconciles a current and a prior period trial balance,
flags accounts whose balance moved by more than a threshold, builds a
simplified P&L and balance sheet, and drafts a question for every
flagged account.

It supports:
- .xlsx and .csv trial balances
- Percent-only or percent-or-absolute flagging policies
- CSV and Excel export of the variance table
- A local archive of saved reports
- An HTTP API and an interactive terminal view

Example:
  tb-variance analyze current.xlsx prior.xlsx
  tb-variance analyze current.csv prior.csv --threshold 5 --save
  tb-variance export current.csv prior.csv --out variance.csv
  tb-variance history list`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		if debug {
			logLevel.Set(slog.LevelDebug)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "YAML settings file (default is $TBV_SETTINGS)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(historyCmd)
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
