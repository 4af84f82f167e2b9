package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

func key(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func apply(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return nm, cmd
}

func record(code, name string, debit, credit int64) ledger.AccountRecord {
	return ledger.NewAccountRecord(code, name, decimal.NewFromInt(debit), decimal.NewFromInt(credit))
}

func testModel(t *testing.T, exportPath string) Model {
	t.Helper()

	current := &ledger.PeriodTable{Source: "current.csv", Records: []ledger.AccountRecord{
		record("4000", "Sales", 0, 5000),
		record("5000", "Rent", 1050, 0),
	}}
	prior := &ledger.PeriodTable{Source: "prior.csv", Records: []ledger.AccountRecord{
		record("4000", "Sales", 0, 4000),
		record("5000", "Rent", 1000, 0),
	}}
	return New(current, prior, pipeline.DefaultConfig(), exportPath)
}

func TestNewComputes(t *testing.T) {
	m := testModel(t, "")

	if !m.Result().Ready() {
		t.Fatal("expected ready result")
	}
	if got := m.Result().FlaggedCount(); got != 1 {
		t.Errorf("FlaggedCount() = %d, expected 1", got)
	}
	if !strings.Contains(m.View(), "Net Profit") {
		t.Errorf("P&L view should show net profit:\n%s", m.View())
	}
}

func TestViewSwitching(t *testing.T) {
	m := testModel(t, "")

	tests := []struct {
		name string
		msg  tea.KeyMsg
		want View
	}{
		{name: "tab", msg: tea.KeyMsg{Type: tea.KeyTab}, want: ViewBalanceSheet},
		{name: "right", msg: tea.KeyMsg{Type: tea.KeyRight}, want: ViewVariance},
		{name: "jump to 4", msg: key("4"), want: ViewQuestions},
		{name: "wraps", msg: tea.KeyMsg{Type: tea.KeyTab}, want: ViewIncome},
		{name: "back wraps", msg: tea.KeyMsg{Type: tea.KeyShiftTab}, want: ViewQuestions},
		{name: "jump to 1", msg: key("1"), want: ViewIncome},
	}

	for _, tt := range tests {
		m, _ = apply(t, m, tt.msg)
		if m.ActiveView() != tt.want {
			t.Errorf("%s: ActiveView() = %v, expected %v", tt.name, m.ActiveView(), tt.want)
		}
	}

	m, _ = apply(t, m, key("4"))
	if !strings.Contains(m.View(), "Sales decreased") {
		t.Errorf("questions view should contain the sales question:\n%s", m.View())
	}
}

func TestThresholdAdjust(t *testing.T) {
	m := testModel(t, "")

	// Rent moved 5%: lowering the threshold to 5 flags it.
	for i := 0; i < 5; i++ {
		m, _ = apply(t, m, key("-"))
	}
	if !m.Result().Thresholds.ThresholdPercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("ThresholdPercent = %s, expected 5", m.Result().Thresholds.ThresholdPercent)
	}
	if got := m.Result().FlaggedCount(); got != 2 {
		t.Errorf("FlaggedCount() = %d, expected 2", got)
	}

	for i := 0; i < 10; i++ {
		m, _ = apply(t, m, key("-"))
	}
	if !m.Result().Thresholds.ThresholdPercent.IsZero() {
		t.Errorf("threshold should clamp at 0, got %s", m.Result().Thresholds.ThresholdPercent)
	}

	for i := 0; i < 60; i++ {
		m, _ = apply(t, m, key("+"))
	}
	if !m.Result().Thresholds.ThresholdPercent.Equal(decimal.NewFromInt(50)) {
		t.Errorf("threshold should clamp at 50, got %s", m.Result().Thresholds.ThresholdPercent)
	}
	if got := m.Result().FlaggedCount(); got != 0 {
		t.Errorf("FlaggedCount() = %d, expected 0", got)
	}
}

func TestTogglePolicy(t *testing.T) {
	m := testModel(t, "")

	m, _ = apply(t, m, key("p"))
	th := m.Result().Thresholds
	if th.Policy != variance.PolicyPercentOrAbsolute {
		t.Fatalf("Policy = %q", th.Policy)
	}
	if !th.AbsoluteThreshold.Valid || !th.AbsoluteThreshold.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("AbsoluteThreshold = %v, expected 1000", th.AbsoluteThreshold)
	}
	// Sales: |-1000| is not above 1000 but 25% is above 10%.
	if got := m.Result().FlaggedCount(); got != 1 {
		t.Errorf("FlaggedCount() = %d, expected 1", got)
	}

	m, _ = apply(t, m, key("p"))
	if m.Result().Thresholds.Policy != variance.PolicyPercentOnly {
		t.Errorf("Policy = %q, expected percent_only", m.Result().Thresholds.Policy)
	}
	if strings.Contains(m.status, "absolute") {
		t.Errorf("status under percent_only should not mention the absolute threshold: %q", m.status)
	}
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	m := testModel(t, path)

	m, cmd := apply(t, m, key("e"))
	if cmd == nil {
		t.Fatal("expected export command")
	}
	m, _ = apply(t, m, cmd())

	if m.statusErr {
		t.Fatalf("export failed: %s", m.status)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "Account Code,") {
		t.Errorf("unexpected export content:\n%s", data)
	}
}

func TestWaiting(t *testing.T) {
	m := New(nil, nil, pipeline.DefaultConfig(), "")

	if !strings.Contains(m.View(), "Please supply both") {
		t.Errorf("waiting view missing prompt:\n%s", m.View())
	}

	m, cmd := apply(t, m, key("e"))
	if cmd != nil || !m.statusErr {
		t.Errorf("export while waiting should set an error status")
	}
}

func TestQuit(t *testing.T) {
	m := testModel(t, "")
	m, cmd := apply(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.View() != "" {
		t.Errorf("View() after quit = %q", m.View())
	}
}
