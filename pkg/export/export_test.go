package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
)

func sampleRows() []reconcile.Row {
	return []reconcile.Row{
		{
			AccountCode:     "1000",
			AccountName:     "Sales Revenue",
			BalanceCurrent:  decimal.NewFromInt(-1200),
			BalancePrior:    decimal.NewFromInt(-1000),
			VarianceAmount:  decimal.NewFromInt(-200),
			VariancePercent: decimal.NewNullDecimal(decimal.NewFromInt(20)),
			Flagged:         true,
		},
		{
			AccountCode:    "2000",
			AccountName:    "Cash",
			BalanceCurrent: decimal.RequireFromString("500.25"),
			BalancePrior:   decimal.Zero,
			VarianceAmount: decimal.RequireFromString("500.25"),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to read back CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, expected 3", len(records))
	}

	expected := [][]string{
		Header,
		{"1000", "Sales Revenue", "-1000", "-1200", "-200", "20", "true"},
		{"2000", "Cash", "0", "500.25", "500.25", "", "false"},
	}
	for i := range expected {
		for j := range expected[i] {
			if records[i][j] != expected[i][j] {
				t.Errorf("record %d field %d = %q, expected %q", i, j, records[i][j], expected[i][j])
			}
		}
	}
}

func TestRecordsRoundsPercent(t *testing.T) {
	rows := []reconcile.Row{{
		AccountCode:     "1",
		VariancePercent: decimal.NewNullDecimal(decimal.NewFromInt(100).Div(decimal.NewFromInt(3))),
	}}

	records := Records(rows)
	if got := records[1][5]; got != "33.333333" {
		t.Errorf("Variance %% = %q, expected 33.333333", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, expected 3", len(rows))
	}
	if rows[0][0] != "Account Code" || rows[1][1] != "Sales Revenue" {
		t.Errorf("unexpected content: %v", rows[:2])
	}
	if rows[1][4] != "-200" {
		t.Errorf("Variance Amount cell = %q, expected -200", rows[1][4])
	}
	if rows[2][5] != "" {
		t.Errorf("Variance %% cell = %q, expected empty", rows[2][5])
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
	}{
		{"report.xlsx", FormatXLSX},
		{"REPORT.XLSX", FormatXLSX},
		{"report.csv", FormatCSV},
		{"report", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FormatFromPath(tt.path); got != tt.expected {
				t.Errorf("FormatFromPath(%q) = %q, expected %q", tt.path, got, tt.expected)
			}
		})
	}
}
