package statement

import (
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
)

// Line is an account record with its category.
type Line struct {
	ledger.AccountRecord
	Category ledger.Category
}

// IncomeStatement holds the Income and Expense lines of a period.
//
// Totals are raw sums of debit-minus-credit balances. No sign convention is applied, so
// a credit-balance revenue account contributes a negative TotalIncome.
type IncomeStatement struct {
	Lines        []Line
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	NetProfit    decimal.Decimal // TotalIncome - TotalExpense
}

// BalanceSheet holds the lines classified as Other.
type BalanceSheet struct {
	Lines []Line
	Total decimal.Decimal
}

// Statements is the classified view of one period.
type Statements struct {
	Source          string
	Lines           []Line // every record, in input order
	IncomeStatement IncomeStatement
	BalanceSheet    BalanceSheet
}

// Build classifies every record of table and aggregates the statements.
func Build(table *ledger.PeriodTable, taxonomy *Taxonomy) Statements {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}

	s := Statements{
		IncomeStatement: IncomeStatement{
			TotalIncome:  decimal.Zero,
			TotalExpense: decimal.Zero,
			NetProfit:    decimal.Zero,
		},
		BalanceSheet: BalanceSheet{Total: decimal.Zero},
	}
	if table == nil {
		return s
	}
	s.Source = table.Source

	for _, record := range table.Records {
		line := Line{AccountRecord: record, Category: taxonomy.Classify(record.Name)}
		s.Lines = append(s.Lines, line)

		switch line.Category {
		case ledger.CategoryIncome:
			s.IncomeStatement.Lines = append(s.IncomeStatement.Lines, line)
			s.IncomeStatement.TotalIncome = s.IncomeStatement.TotalIncome.Add(record.Balance)
		case ledger.CategoryExpense:
			s.IncomeStatement.Lines = append(s.IncomeStatement.Lines, line)
			s.IncomeStatement.TotalExpense = s.IncomeStatement.TotalExpense.Add(record.Balance)
		default:
			s.BalanceSheet.Lines = append(s.BalanceSheet.Lines, line)
			s.BalanceSheet.Total = s.BalanceSheet.Total.Add(record.Balance)
		}
	}

	s.IncomeStatement.NetProfit = s.IncomeStatement.TotalIncome.Sub(s.IncomeStatement.TotalExpense)
	return s
}
