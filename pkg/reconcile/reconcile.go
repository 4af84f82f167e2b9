// Package reconcile joins current and prior period trial balances on account code and
// derives per-account variance.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
)

var hundred = decimal.NewFromInt(100)

// Row is one line of the reconciled variance table.
type Row struct {
	AccountCode        string
	AccountName        string // Current period name, falling back to the prior period name
	AccountNameCurrent string
	AccountNamePrior   string
	InCurrent          bool
	InPrior            bool
	BalanceCurrent     decimal.Decimal
	BalancePrior       decimal.Decimal
	VarianceAmount     decimal.Decimal
	// VariancePercent is invalid when BalancePrior is zero. It must never be read as 0.
	VariancePercent decimal.NullDecimal
	Flagged         bool
}

// HasPercent reports whether a percentage variance is available for the row.
func (r Row) HasPercent() bool {
	return r.VariancePercent.Valid
}

// Merge performs a full outer join of current and prior on account code.
//
// Every code present in either table yields at least one row. A code occurring m times
// in current and n times in prior yields m*n rows (each occurrence pairs independently);
// a code present on one side only yields one row per occurrence with the other side
// zero-filled. Rows are ordered by account code, then by current occurrence, then by
// prior occurrence.
func Merge(current, prior *ledger.PeriodTable) []Row {
	currentByCode := groupByCode(current)
	priorByCode := groupByCode(prior)

	codes := make([]string, 0, len(currentByCode)+len(priorByCode))
	for code := range currentByCode {
		codes = append(codes, code)
	}
	for code := range priorByCode {
		if _, ok := currentByCode[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	var rows []Row
	for _, code := range codes {
		cur := currentByCode[code]
		pri := priorByCode[code]

		switch {
		case len(pri) == 0:
			for _, c := range cur {
				rows = append(rows, newRow(code, &c, nil))
			}
		case len(cur) == 0:
			for _, p := range pri {
				rows = append(rows, newRow(code, nil, &p))
			}
		default:
			for _, c := range cur {
				for _, p := range pri {
					rows = append(rows, newRow(code, &c, &p))
				}
			}
		}
	}

	return rows
}

// VariancePercent returns amount / prior * 100, or an invalid value when prior is zero.
func VariancePercent(amount, prior decimal.Decimal) decimal.NullDecimal {
	if prior.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Div(prior).Mul(hundred))
}

func newRow(code string, cur, pri *ledger.AccountRecord) Row {
	row := Row{
		AccountCode:    code,
		BalanceCurrent: decimal.Zero,
		BalancePrior:   decimal.Zero,
	}

	if cur != nil {
		row.InCurrent = true
		row.AccountNameCurrent = cur.Name
		row.BalanceCurrent = cur.Balance
	}
	if pri != nil {
		row.InPrior = true
		row.AccountNamePrior = pri.Name
		row.BalancePrior = pri.Balance
	}

	row.AccountName = row.AccountNameCurrent
	if !row.InCurrent || row.AccountName == "" {
		row.AccountName = row.AccountNamePrior
	}

	row.VarianceAmount = row.BalanceCurrent.Sub(row.BalancePrior)
	row.VariancePercent = VariancePercent(row.VarianceAmount, row.BalancePrior)

	return row
}

func groupByCode(table *ledger.PeriodTable) map[string][]ledger.AccountRecord {
	groups := make(map[string][]ledger.AccountRecord)
	if table == nil {
		return groups
	}
	for _, r := range table.Records {
		groups[r.Code] = append(groups[r.Code], r)
	}
	return groups
}
