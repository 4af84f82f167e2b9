// Package variance decides which reconciled accounts carry a significant variance.
package variance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
)

// Policy selects the flagging rule.
type Policy string

const (
	// PolicyPercentOnly flags rows whose |percent| is at least the threshold.
	PolicyPercentOnly Policy = "percent_only"
	// PolicyPercentOrAbsolute flags rows whose |amount| exceeds the absolute threshold
	// or whose |percent| exceeds the percent threshold.
	PolicyPercentOrAbsolute Policy = "percent_or_absolute"
)

// Threshold bounds accepted for ThresholdPercent.
const (
	MinThresholdPercent = 0
	MaxThresholdPercent = 50

	DefaultThresholdPercent  = 10
	DefaultAbsoluteThreshold = 1000
)

// ParsePolicy parses a policy name. Hyphens and case are ignored.
func ParsePolicy(s string) (Policy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch Policy(normalized) {
	case PolicyPercentOnly, PolicyPercentOrAbsolute:
		return Policy(normalized), nil
	case "":
		return PolicyPercentOnly, nil
	}
	return "", fmt.Errorf("unknown variance policy: %q (expected %s or %s)", s, PolicyPercentOnly, PolicyPercentOrAbsolute)
}

// Thresholds configures the classifier.
type Thresholds struct {
	Policy           Policy
	ThresholdPercent decimal.Decimal
	// AbsoluteThreshold is only consulted by PolicyPercentOrAbsolute. Invalid means disabled.
	AbsoluteThreshold decimal.NullDecimal
}

// DefaultThresholds returns the percent-only policy at 10%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Policy:           PolicyPercentOnly,
		ThresholdPercent: decimal.NewFromInt(DefaultThresholdPercent),
	}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if _, err := ParsePolicy(string(t.Policy)); err != nil {
		return err
	}
	if t.ThresholdPercent.LessThan(decimal.NewFromInt(MinThresholdPercent)) ||
		t.ThresholdPercent.GreaterThan(decimal.NewFromInt(MaxThresholdPercent)) {
		return fmt.Errorf("threshold percent %s out of range [%d, %d]", t.ThresholdPercent, MinThresholdPercent, MaxThresholdPercent)
	}
	if t.AbsoluteThreshold.Valid && t.AbsoluteThreshold.Decimal.IsNegative() {
		return fmt.Errorf("absolute threshold must not be negative: %s", t.AbsoluteThreshold.Decimal)
	}
	return nil
}

// IsFlagged applies the configured policy to one row.
func (t Thresholds) IsFlagged(row reconcile.Row) bool {
	switch t.Policy {
	case PolicyPercentOrAbsolute:
		if t.AbsoluteThreshold.Valid && row.VarianceAmount.Abs().GreaterThan(t.AbsoluteThreshold.Decimal) {
			return true
		}
		return row.VariancePercent.Valid && row.VariancePercent.Decimal.Abs().GreaterThan(t.ThresholdPercent)
	default:
		return row.VariancePercent.Valid && row.VariancePercent.Decimal.Abs().GreaterThanOrEqual(t.ThresholdPercent)
	}
}

// Apply returns a copy of rows with Flagged set. The input slice is not modified.
func Apply(rows []reconcile.Row, t Thresholds) []reconcile.Row {
	out := make([]reconcile.Row, len(rows))
	for i, row := range rows {
		row.Flagged = t.IsFlagged(row)
		out[i] = row
	}
	return out
}

// Flagged returns only the flagged rows, preserving order.
func Flagged(rows []reconcile.Row) []reconcile.Row {
	var out []reconcile.Row
	for _, row := range rows {
		if row.Flagged {
			out = append(out, row)
		}
	}
	return out
}
