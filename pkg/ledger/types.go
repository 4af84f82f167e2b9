// Package ledger defines the trial balance data model shared by every stage of the
// variance pipeline.
package ledger

import "github.com/shopspring/decimal"

// AccountRecord represents one row of a trial balance export.
type AccountRecord struct {
	Code    string          // Account code, the reconciliation key
	Name    string          // Account name, "" when the export has no name column
	Debit   decimal.Decimal // Debit amount, zero when the cell was empty
	Credit  decimal.Decimal // Credit amount, zero when the cell was empty
	Balance decimal.Decimal // Debit minus credit
}

// NewAccountRecord builds a record and derives its signed balance.
func NewAccountRecord(code, name string, debit, credit decimal.Decimal) AccountRecord {
	return AccountRecord{
		Code:    code,
		Name:    name,
		Debit:   debit,
		Credit:  credit,
		Balance: debit.Sub(credit),
	}
}

// PeriodTable is the ordered set of account records for one reporting period.
// Account codes are not guaranteed to be unique; duplicates are kept as separate rows.
type PeriodTable struct {
	Source       string // File name the table was loaded from
	NoCodeColumn bool   // Set when the export had no account code column
	Records      []AccountRecord
}

// Len returns the number of records.
func (t *PeriodTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Codes returns the distinct account codes in first-seen order.
func (t *PeriodTable) Codes() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool, len(t.Records))
	var codes []string
	for _, r := range t.Records {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		codes = append(codes, r.Code)
	}
	return codes
}
