package server

import (
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/narrator"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/statement"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// Amounts are encoded as JSON strings so that no precision is lost.

// AnalyzeResponse represents the response for POST /api/v1/analyze.
type AnalyzeResponse struct {
	State         string                `json:"state"`
	Message       string                `json:"message,omitempty"`
	CurrentSource string                `json:"current_source,omitempty"`
	PriorSource   string                `json:"prior_source,omitempty"`
	Thresholds    ThresholdsResponse    `json:"thresholds"`
	FlaggedCount  int                   `json:"flagged_count"`
	Rows          []RowResponse         `json:"rows"`
	Income        *IncomeResponse       `json:"income_statement,omitempty"`
	BalanceSheet  *BalanceSheetResponse `json:"balance_sheet,omitempty"`
	Questions     []QuestionResponse    `json:"questions"`
	AllClear      bool                  `json:"all_clear"`
	Summary       []string              `json:"summary"`
}

// ThresholdsResponse describes the flagging rule that was applied.
type ThresholdsResponse struct {
	Policy            variance.Policy     `json:"policy"`
	ThresholdPercent  decimal.Decimal     `json:"threshold_percent"`
	AbsoluteThreshold decimal.NullDecimal `json:"absolute_threshold"`
}

// RowResponse is one reconciled account.
type RowResponse struct {
	AccountCode     string              `json:"account_code"`
	AccountName     string              `json:"account_name"`
	InCurrent       bool                `json:"in_current"`
	InPrior         bool                `json:"in_prior"`
	BalanceCurrent  decimal.Decimal     `json:"balance_current"`
	BalancePrior    decimal.Decimal     `json:"balance_prior"`
	VarianceAmount  decimal.Decimal     `json:"variance_amount"`
	VariancePercent decimal.NullDecimal `json:"variance_percent"`
	Flagged         bool                `json:"flagged"`
}

// LineResponse is one classified account of the current period.
type LineResponse struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Category    string          `json:"category"`
	Balance     decimal.Decimal `json:"balance"`
}

// IncomeResponse is the current period's income statement.
type IncomeResponse struct {
	Lines        []LineResponse  `json:"lines"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// BalanceSheetResponse is the current period's balance sheet.
type BalanceSheetResponse struct {
	Lines []LineResponse  `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// QuestionResponse is one narrated variance question.
type QuestionResponse struct {
	AccountCode string             `json:"account_code"`
	Direction   narrator.Direction `json:"direction"`
	Text        string             `json:"text"`
}

func newAnalyzeResponse(result pipeline.Result, message string) AnalyzeResponse {
	resp := AnalyzeResponse{
		State:         string(result.State),
		Message:       message,
		CurrentSource: result.CurrentSource,
		PriorSource:   result.PriorSource,
		Thresholds: ThresholdsResponse{
			Policy:            result.Thresholds.Policy,
			ThresholdPercent:  result.Thresholds.ThresholdPercent,
			AbsoluteThreshold: result.Thresholds.AbsoluteThreshold,
		},
		Rows:      []RowResponse{},
		Questions: []QuestionResponse{},
		Summary:   []string{},
	}
	if !result.Ready() {
		return resp
	}

	resp.FlaggedCount = result.FlaggedCount()
	for _, row := range result.Rows {
		resp.Rows = append(resp.Rows, newRowResponse(row))
	}

	is := result.Current.IncomeStatement
	resp.Income = &IncomeResponse{
		Lines:        newLineResponses(is.Lines),
		TotalIncome:  is.TotalIncome,
		TotalExpense: is.TotalExpense,
		NetProfit:    is.NetProfit,
	}
	bs := result.Current.BalanceSheet
	resp.BalanceSheet = &BalanceSheetResponse{
		Lines: newLineResponses(bs.Lines),
		Total: bs.Total,
	}

	for _, q := range result.Narrative.Questions {
		resp.Questions = append(resp.Questions, QuestionResponse{
			AccountCode: q.AccountCode,
			Direction:   q.Direction,
			Text:        q.Text,
		})
	}
	resp.AllClear = result.Narrative.AllClear
	resp.Summary = append(resp.Summary, result.Narrative.Lines...)

	return resp
}

func newRowResponse(row reconcile.Row) RowResponse {
	return RowResponse{
		AccountCode:     row.AccountCode,
		AccountName:     row.AccountName,
		InCurrent:       row.InCurrent,
		InPrior:         row.InPrior,
		BalanceCurrent:  row.BalanceCurrent,
		BalancePrior:    row.BalancePrior,
		VarianceAmount:  row.VarianceAmount,
		VariancePercent: row.VariancePercent,
		Flagged:         row.Flagged,
	}
}

func newLineResponses(lines []statement.Line) []LineResponse {
	out := make([]LineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineResponse{
			AccountCode: l.Code,
			AccountName: l.Name,
			Category:    l.Category.String(),
			Balance:     l.Balance,
		})
	}
	return out
}
