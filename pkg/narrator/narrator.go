// Package narrator turns flagged variances into questions for the finance team.
package narrator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/money"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
)

// Direction of a variance.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

func (d Direction) verb() string {
	if d == DirectionIncrease {
		return "increased"
	}
	return "decreased"
}

// PercentUnavailable replaces the percentage in a question when the prior balance was zero.
const PercentUnavailable = "an unavailable percentage"

// AllClearMessage is the single result produced when nothing is flagged.
const AllClearMessage = "No significant variances found! All good."

// VarianceQuestion asks for an explanation of one flagged account.
type VarianceQuestion struct {
	AccountCode     string
	AccountName     string
	VarianceAmount  decimal.Decimal
	VariancePercent decimal.NullDecimal
	Direction       Direction
	Text            string
}

// Narrative is the narrator's output. Lines is never empty: when no account is flagged
// it holds AllClearMessage and AllClear is true.
type Narrative struct {
	Questions []VarianceQuestion
	Lines     []string
	AllClear  bool
}

// Narrator renders questions using a currency symbol and a period label.
type Narrator struct {
	currency    string
	periodLabel string
}

// New creates a Narrator. Empty arguments fall back to "$" and "last month".
func New(currencySymbol, periodLabel string) *Narrator {
	if currencySymbol == "" {
		currencySymbol = money.DefaultSymbol
	}
	if periodLabel == "" {
		periodLabel = "last month"
	}
	return &Narrator{currency: currencySymbol, periodLabel: periodLabel}
}

// Narrate produces one question per flagged row, in row order.
func (n *Narrator) Narrate(rows []reconcile.Row) Narrative {
	var narrative Narrative

	for _, row := range rows {
		if !row.Flagged {
			continue
		}
		q := n.Question(row)
		narrative.Questions = append(narrative.Questions, q)
		narrative.Lines = append(narrative.Lines, q.Text)
	}

	if len(narrative.Questions) == 0 {
		narrative.AllClear = true
		narrative.Lines = []string{AllClearMessage}
	}

	return narrative
}

// Question builds the question for a single row regardless of its flag.
func (n *Narrator) Question(row reconcile.Row) VarianceQuestion {
	direction := DirectionDecrease
	if row.VarianceAmount.IsPositive() {
		direction = DirectionIncrease
	}

	percent := PercentUnavailable
	if row.VariancePercent.Valid {
		percent = row.VariancePercent.Decimal.Abs().StringFixed(1) + "%"
	}

	text := fmt.Sprintf("%s %s by %s (%s) compared to %s. Please explain.",
		row.AccountName,
		direction.verb(),
		percent,
		money.Currency(n.currency, row.VarianceAmount.Abs()),
		n.periodLabel,
	)

	return VarianceQuestion{
		AccountCode:     row.AccountCode,
		AccountName:     row.AccountName,
		VarianceAmount:  row.VarianceAmount,
		VariancePercent: row.VariancePercent,
		Direction:       direction,
		Text:            text,
	}
}
