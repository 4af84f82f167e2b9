package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/narrator"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

func sampleResult(t *testing.T) pipeline.Result {
	t.Helper()
	current := &ledger.PeriodTable{Source: "current.csv", Records: []ledger.AccountRecord{
		ledger.NewAccountRecord("4000", "Sales Revenue", decimal.NewFromInt(5000), decimal.Zero),
		ledger.NewAccountRecord("6000", "Rent Expense", decimal.NewFromInt(3200), decimal.Zero),
		ledger.NewAccountRecord("1000", "Cash at Bank", decimal.NewFromInt(900), decimal.Zero),
	}}
	prior := &ledger.PeriodTable{Source: "prior.csv", Records: []ledger.AccountRecord{
		ledger.NewAccountRecord("4000", "Sales Revenue", decimal.NewFromInt(4000), decimal.Zero),
		ledger.NewAccountRecord("6000", "Rent Expense", decimal.NewFromInt(3200), decimal.Zero),
	}}

	result, err := pipeline.Compute(current, prior, pipeline.DefaultConfig())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return result
}

func TestRender(t *testing.T) {
	out := New("$").Render(sampleResult(t))

	expected := []string{
		"Profit & Loss Statement",
		"Balance Sheet",
		"Cash at Bank",
		"Net Profit: $1,800.00",
		"5,000.00",
		"25.00%",
		"n/a",
		"Sales Revenue increased by 25.0% ($1,000) compared to last month. Please explain.",
		"1 of 3 accounts flagged",
	}
	for _, s := range expected {
		if !strings.Contains(out, s) {
			t.Errorf("Render() output missing %q\n%s", s, out)
		}
	}
}

func TestRenderWaiting(t *testing.T) {
	out := New("").Render(pipeline.Result{State: pipeline.StateWaiting})
	if !strings.Contains(out, WaitingMessage) {
		t.Errorf("Render() = %q, expected waiting message", out)
	}
}

func TestQuestionsAllClear(t *testing.T) {
	out := Questions(narrator.New("", "").Narrate(nil))
	if !strings.Contains(out, narrator.AllClearMessage) {
		t.Errorf("Questions() = %q, expected all-clear message", out)
	}
}

func TestBalanceSheetEmpty(t *testing.T) {
	result := sampleResult(t)
	result.Current.BalanceSheet.Lines = nil

	if got := New("$").BalanceSheet(result.Current.BalanceSheet); got != "(no accounts)" {
		t.Errorf("BalanceSheet() = %q, expected (no accounts)", got)
	}
}

func TestThresholdSummaryAbsolute(t *testing.T) {
	abs := decimal.NewNullDecimal(decimal.NewFromInt(1000))

	tests := []struct {
		name         string
		policy       variance.Policy
		wantAbsolute bool
	}{
		{name: "percent only ignores absolute", policy: variance.PolicyPercentOnly, wantAbsolute: false},
		{name: "percent or absolute shows absolute", policy: variance.PolicyPercentOrAbsolute, wantAbsolute: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pipeline.Result{
				State: pipeline.StateReady,
				Thresholds: variance.Thresholds{
					Policy:            tt.policy,
					ThresholdPercent:  decimal.NewFromInt(10),
					AbsoluteThreshold: abs,
				},
			}
			got := ThresholdSummary(result)
			if strings.Contains(got, "absolute 1000") != tt.wantAbsolute {
				t.Errorf("ThresholdSummary() = %q, expected absolute shown = %v", got, tt.wantAbsolute)
			}
		})
	}
}
