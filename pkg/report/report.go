// Package report renders pipeline results as styled terminal text.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/money"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/narrator"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/statement"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// WaitingMessage is shown while an input is missing.
const WaitingMessage = "Please supply both the current and prior period trial balances to proceed."

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
	metricStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	flagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
)

// Renderer formats results with a currency symbol.
type Renderer struct {
	currency string
}

// New creates a Renderer.
func New(currencySymbol string) *Renderer {
	if currencySymbol == "" {
		currencySymbol = money.DefaultSymbol
	}
	return &Renderer{currency: currencySymbol}
}

// Render renders every section of a result.
func (r *Renderer) Render(result pipeline.Result) string {
	if !result.Ready() {
		return WaitingMessage + "\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Trial Balance Variance Report"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Current: %s   Prior: %s\n\n", result.CurrentSource, result.PriorSource))

	sb.WriteString(headingStyle.Render("Profit & Loss Statement (Current Period)"))
	sb.WriteString("\n")
	sb.WriteString(r.IncomeStatement(result.Current.IncomeStatement))
	sb.WriteString("\n\n")

	sb.WriteString(headingStyle.Render("Balance Sheet (Current Period)"))
	sb.WriteString("\n")
	sb.WriteString(r.BalanceSheet(result.Current.BalanceSheet))
	sb.WriteString("\n\n")

	sb.WriteString(headingStyle.Render("Variance Analysis"))
	sb.WriteString("\n")
	sb.WriteString(ThresholdSummary(result))
	sb.WriteString("\n")
	sb.WriteString(r.Variance(result.Rows))
	sb.WriteString("\n\n")

	sb.WriteString(headingStyle.Render("Questions for the Team"))
	sb.WriteString("\n")
	sb.WriteString(Questions(result.Narrative))

	return sb.String()
}

// IncomeStatement renders the P&L lines followed by totals and net profit.
func (r *Renderer) IncomeStatement(is statement.IncomeStatement) string {
	var sb strings.Builder
	sb.WriteString(r.lines(is.Lines))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Income:   %s\n", money.Format(is.TotalIncome, 2)))
	sb.WriteString(fmt.Sprintf("Total Expenses: %s\n", money.Format(is.TotalExpense, 2)))
	sb.WriteString(metricStyle.Render(fmt.Sprintf("Net Profit: %s", money.CurrencyFixed(r.currency, is.NetProfit, 2))))
	return sb.String()
}

// BalanceSheet renders the lines classified as Other.
func (r *Renderer) BalanceSheet(bs statement.BalanceSheet) string {
	return r.lines(bs.Lines)
}

// Variance renders the reconciled table.
func (r *Renderer) Variance(rows []reconcile.Row) string {
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		highlighted := "no"
		if row.Flagged {
			highlighted = "YES"
		}
		data = append(data, []string{
			row.AccountCode,
			row.AccountName,
			money.Format(row.BalancePrior, 2),
			money.Format(row.BalanceCurrent, 2),
			money.Format(row.VarianceAmount, 2),
			money.Percent(row.VariancePercent, 2),
			highlighted,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Code", "Account", "Last", "Current", "Variance", "Variance %", "Flagged").
		Rows(data...).
		StyleFunc(func(rowIdx, col int) lipgloss.Style {
			if rowIdx == table.HeaderRow {
				return headingStyle.Padding(0, 1)
			}
			style := cellStyle
			if col >= 2 && col <= 5 {
				style = numberStyle
			}
			if rowIdx >= 0 && rowIdx < len(rows) && rows[rowIdx].Flagged {
				style = style.Inherit(flagStyle)
			}
			return style
		})

	return t.String()
}

// Questions renders the narrative, one line per question.
func Questions(n narrator.Narrative) string {
	var sb strings.Builder
	for _, line := range n.Lines {
		if n.AllClear {
			sb.WriteString(okStyle.Render(line))
		} else {
			sb.WriteString("- " + line)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ThresholdSummary describes the flagging rule in effect.
func ThresholdSummary(result pipeline.Result) string {
	th := result.Thresholds
	summary := fmt.Sprintf("Policy: %s, threshold %s%%", th.Policy, th.ThresholdPercent.String())
	if th.Policy == variance.PolicyPercentOrAbsolute && th.AbsoluteThreshold.Valid {
		summary += fmt.Sprintf(", absolute %s", th.AbsoluteThreshold.Decimal.String())
	}
	return summary + fmt.Sprintf(" (%d of %d accounts flagged)", result.FlaggedCount(), len(result.Rows))
}

func (r *Renderer) lines(lines []statement.Line) string {
	if len(lines) == 0 {
		return "(no accounts)"
	}

	data := make([][]string, 0, len(lines))
	for _, l := range lines {
		data = append(data, []string{l.Code, l.Name, l.Category.String(), money.Format(l.Balance, 2)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Code", "Account", "Category", "Balance").
		Rows(data...).
		StyleFunc(func(rowIdx, col int) lipgloss.Style {
			if rowIdx == table.HeaderRow {
				return headingStyle.Padding(0, 1)
			}
			if col == 3 {
				return numberStyle
			}
			return cellStyle
		})

	return t.String()
}
