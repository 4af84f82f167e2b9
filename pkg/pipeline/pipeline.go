// Package pipeline wires the loader, reconciler, classifier, statement builder and
// narrator into a single pure computation.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/loader"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/narrator"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/statement"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// State describes whether a Result carries computed output.
type State string

const (
	// StateWaiting means at least one input is missing. It is not an error.
	StateWaiting State = "waiting_for_input"
	StateReady   State = "ready"
)

// Config holds everything Compute needs besides the two tables.
type Config struct {
	Thresholds     variance.Thresholds
	Taxonomy       *statement.Taxonomy // nil uses statement.DefaultTaxonomy
	CurrencySymbol string
	PeriodLabel    string // how narration refers to the prior period, e.g. "last month"
}

// DefaultConfig returns the percent-only policy at 10% with the default taxonomy.
func DefaultConfig() Config {
	return Config{
		Thresholds: variance.DefaultThresholds(),
		Taxonomy:   statement.DefaultTaxonomy(),
	}
}

// Result is the full output of one pipeline run.
type Result struct {
	State         State
	CurrentSource string
	PriorSource   string
	Thresholds    variance.Thresholds
	Rows          []reconcile.Row
	Current       statement.Statements
	Prior         statement.Statements
	Narrative     narrator.Narrative
}

// FlaggedCount returns the number of flagged rows.
func (r Result) FlaggedCount() int {
	return len(variance.Flagged(r.Rows))
}

// Ready reports whether the result holds computed output.
func (r Result) Ready() bool {
	return r.State == StateReady
}

// Compute runs the whole pipeline from scratch. It keeps no state between calls, so
// identical inputs always give identical results.
//
// A nil table yields a StateWaiting result and no error. A table without an account
// code column cannot be reconciled and yields a *loader.MalformedInputError.
func Compute(current, prior *ledger.PeriodTable, cfg Config) (Result, error) {
	if current == nil || prior == nil {
		return Result{State: StateWaiting, Thresholds: cfg.Thresholds}, nil
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid thresholds: %w", err)
	}

	for _, table := range []*ledger.PeriodTable{current, prior} {
		if table.NoCodeColumn {
			return Result{}, &loader.MalformedInputError{
				File:   table.Source,
				Column: loader.ColumnAccountCode,
			}
		}
	}

	taxonomy := cfg.Taxonomy
	if taxonomy == nil {
		taxonomy = statement.DefaultTaxonomy()
	}

	rows := variance.Apply(reconcile.Merge(current, prior), cfg.Thresholds)

	result := Result{
		State:         StateReady,
		CurrentSource: current.Source,
		PriorSource:   prior.Source,
		Thresholds:    cfg.Thresholds,
		Rows:          rows,
		Current:       statement.Build(current, taxonomy),
		Prior:         statement.Build(prior, taxonomy),
		Narrative:     narrator.New(cfg.CurrencySymbol, cfg.PeriodLabel).Narrate(rows),
	}

	slog.Debug("Computed variance report",
		"current", current.Source,
		"prior", prior.Source,
		"rows", len(rows),
		"flagged", result.FlaggedCount(),
		"policy", string(cfg.Thresholds.Policy),
	)

	return result, nil
}

// Run loads both files and computes the result. An empty path is treated as an input
// that has not been supplied yet.
func Run(currentPath, priorPath string, cfg Config) (Result, error) {
	current, err := loadOptional(currentPath)
	if err != nil {
		return Result{}, err
	}
	prior, err := loadOptional(priorPath)
	if err != nil {
		return Result{}, err
	}
	return Compute(current, prior, cfg)
}

func loadOptional(path string) (*ledger.PeriodTable, error) {
	if path == "" {
		return nil, nil
	}
	return loader.LoadFile(path)
}
