// Package tui is an interactive terminal view of a variance analysis.
package tui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/export"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/report"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// View is one of the report sections.
type View int

const (
	ViewIncome View = iota
	ViewBalanceSheet
	ViewVariance
	ViewQuestions
)

var viewTitles = []string{"P&L", "Balance Sheet", "Variance", "Questions"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewTitles) {
		return "unknown"
	}
	return viewTitles[v]
}

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const helpText = "tab/1-4 view  +/- threshold  p policy  e export  q quit"

type exportDoneMsg struct {
	path string
	err  error
}

// Model is the bubbletea model. Every threshold or policy change recomputes the whole
// pipeline from the two loaded tables.
type Model struct {
	current    *ledger.PeriodTable
	prior      *ledger.PeriodTable
	cfg        pipeline.Config
	result     pipeline.Result
	renderer   *report.Renderer
	view       View
	exportPath string
	status     string
	statusErr  bool
	width      int
	height     int
	quitting   bool
}

// New creates a Model and computes the initial result.
func New(current, prior *ledger.PeriodTable, cfg pipeline.Config, exportPath string) Model {
	m := Model{
		current:    current,
		prior:      prior,
		cfg:        cfg,
		renderer:   report.New(cfg.CurrencySymbol),
		exportPath: exportPath,
		status:     "Ready",
		width:      100,
		height:     32,
	}
	m.recompute()
	return m
}

// Result returns the current pipeline result.
func (m Model) Result() pipeline.Result {
	return m.result
}

// ActiveView returns the selected section.
func (m Model) ActiveView() View {
	return m.view
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("Exported to " + msg.path)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab", "right", "l":
		m.view = (m.view + 1) % View(len(viewTitles))
	case "shift+tab", "left", "h":
		m.view = (m.view + View(len(viewTitles)) - 1) % View(len(viewTitles))
	case "1", "2", "3", "4":
		m.view = View(msg.String()[0] - '1')
	case "+", "=", "up", "k":
		m.adjustThreshold(1)
	case "-", "down", "j":
		m.adjustThreshold(-1)
	case "p":
		m.togglePolicy()
	case "e":
		if !m.result.Ready() {
			m.setError(fmt.Errorf("nothing to export yet"))
			return m, nil
		}
		return m, exportCmd(m.exportPath, m.result)
	}
	return m, nil
}

// adjustThreshold moves the percent threshold by step, clamped to the allowed range.
func (m *Model) adjustThreshold(step int64) {
	next := m.cfg.Thresholds.ThresholdPercent.Add(decimal.NewFromInt(step))
	lo := decimal.NewFromInt(variance.MinThresholdPercent)
	hi := decimal.NewFromInt(variance.MaxThresholdPercent)
	if next.LessThan(lo) {
		next = lo
	}
	if next.GreaterThan(hi) {
		next = hi
	}
	if next.Equal(m.cfg.Thresholds.ThresholdPercent) {
		return
	}
	m.cfg.Thresholds.ThresholdPercent = next
	m.recompute()
}

func (m *Model) togglePolicy() {
	if m.cfg.Thresholds.Policy == variance.PolicyPercentOrAbsolute {
		m.cfg.Thresholds.Policy = variance.PolicyPercentOnly
	} else {
		m.cfg.Thresholds.Policy = variance.PolicyPercentOrAbsolute
		if !m.cfg.Thresholds.AbsoluteThreshold.Valid {
			m.cfg.Thresholds.AbsoluteThreshold = decimal.NewNullDecimal(decimal.NewFromInt(variance.DefaultAbsoluteThreshold))
		}
	}
	m.recompute()
}

func (m *Model) recompute() {
	result, err := pipeline.Compute(m.current, m.prior, m.cfg)
	if err != nil {
		m.setError(err)
		return
	}
	m.result = result
	if result.Ready() {
		m.setStatus(report.ThresholdSummary(result))
	}
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func exportCmd(path string, result pipeline.Result) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportDoneMsg{err: fmt.Errorf("failed to create export file: %w", err)}
		}
		defer f.Close()

		if err := export.Write(f, result.Rows, export.FormatFromPath(path)); err != nil {
			return exportDoneMsg{err: fmt.Errorf("failed to export: %w", err)}
		}
		return exportDoneMsg{path: path}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tabs := make([]string, 0, len(viewTitles))
	for i, title := range viewTitles {
		label := fmt.Sprintf("%d %s", i+1, title)
		if View(i) == m.view {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	sb.WriteString("\n\n")

	sb.WriteString(m.body())
	sb.WriteString("\n\n")

	if m.statusErr {
		sb.WriteString(errorStyle.Render(m.status))
	} else {
		sb.WriteString(statusStyle.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(helpText))

	return sb.String()
}

func (m Model) body() string {
	if !m.result.Ready() {
		return report.WaitingMessage
	}

	switch m.view {
	case ViewBalanceSheet:
		return m.renderer.BalanceSheet(m.result.Current.BalanceSheet)
	case ViewVariance:
		return m.renderer.Variance(m.result.Rows)
	case ViewQuestions:
		return report.Questions(m.result.Narrative)
	default:
		return m.renderer.IncomeStatement(m.result.Current.IncomeStatement)
	}
}

// Run starts the interactive program.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
