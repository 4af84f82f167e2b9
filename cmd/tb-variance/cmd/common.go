package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/config"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/db"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/loader"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pathutil"
)

// Flags shared by the commands that run the pipeline.
var (
	thresholdPercent  float64
	absoluteThreshold string
	policyName        string
	taxonomyFile      string
	currencySymbol    string
	periodLabel       string
)

func addVarianceFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&thresholdPercent, "threshold", 10, "variance threshold in percent (0-50)")
	fs.StringVar(&absoluteThreshold, "absolute", "", `absolute variance threshold, or "off" (percent_or_absolute only)`)
	fs.StringVar(&policyName, "policy", "", "flagging policy: percent_only or percent_or_absolute")
	fs.StringVar(&taxonomyFile, "taxonomy", "", "keyword taxonomy YAML file")
	fs.StringVar(&currencySymbol, "currency", "", "currency symbol used in narration")
	fs.StringVar(&periodLabel, "period-label", "", `how questions refer to the prior period (default "last month")`)
}

// loadConfig loads configuration and applies the flags the user explicitly set.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cfgFile, settingsFile)
	exitOnError(err, "failed to load configuration")

	applyFlagOverrides(cmd.Flags(), cfg)

	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	return cfg
}

// applyFlagOverrides copies changed flags over configuration values.
func applyFlagOverrides(fs *pflag.FlagSet, cfg *config.Config) {
	if changed(fs, "threshold") {
		cfg.Variance.ThresholdPercent = thresholdPercent
	}
	if changed(fs, "absolute") {
		cfg.Variance.AbsoluteThreshold = absoluteThreshold
	}
	if changed(fs, "policy") {
		cfg.Variance.Policy = policyName
	}
	if changed(fs, "taxonomy") {
		cfg.Taxonomy.File = taxonomyFile
	}
	if changed(fs, "currency") {
		cfg.Display.CurrencySymbol = currencySymbol
	}
	if changed(fs, "period-label") {
		cfg.Display.PeriodLabel = periodLabel
	}
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// loadTables loads the trial balances named by args. A missing argument leaves the
// corresponding table nil.
func loadTables(args []string) (current, prior *ledger.PeriodTable, err error) {
	if len(args) > 0 {
		slog.Debug("Loading current period", "file", args[0])
		if current, err = loader.LoadFile(args[0]); err != nil {
			return nil, nil, err
		}
	}
	if len(args) > 1 {
		slog.Debug("Loading prior period", "file", args[1])
		if prior, err = loader.LoadFile(args[1]); err != nil {
			return nil, nil, err
		}
	}
	return current, prior, nil
}

func newPathResolver(cfg *config.Config) *pathutil.PathResolver {
	return pathutil.New(pathutil.Config{
		Root:         cfg.Storage.Root,
		DatabasePath: cfg.Storage.DBPath,
		ExportDir:    cfg.Storage.ExportDir,
	})
}

// openArchive opens the report archive database.
func openArchive(cfg *config.Config) (*db.Connection, *db.ReportArchive) {
	if err := cfg.Validate([]string{"storage", "root"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	dbPath := newPathResolver(cfg).GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	return conn, db.NewReportArchive(conn)
}

// withArchive runs fn against the report archive and exits with msg if it fails.
func withArchive(cfg *config.Config, msg string, fn func(ctx context.Context, archive *db.ReportArchive) error) {
	exitOnError(runWithArchive(cfg, fn), msg)
}

// runWithArchive closes the database before returning fn's error.
func runWithArchive(cfg *config.Config, fn func(ctx context.Context, archive *db.ReportArchive) error) error {
	conn, archive := openArchive(cfg)

	err := fn(context.Background(), archive)
	if cerr := conn.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close database: %w", cerr)
	}
	return err
}

// exportLabel derives an export label from an input file name.
func exportLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func describeArgs(args []string) string {
	switch len(args) {
	case 0:
		return "no files"
	case 1:
		return fmt.Sprintf("current=%s", args[0])
	default:
		return fmt.Sprintf("current=%s prior=%s", args[0], args[1])
	}
}
