// Package loader reads trial balance spreadsheet exports and normalizes them into
// ledger.PeriodTable values.
package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
)

// Format identifies the spreadsheet encoding of an input.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Canonical column names, matched after trimming and lower-casing headers.
const (
	ColumnDebit       = "debit"
	ColumnCredit      = "credit"
	ColumnAccountCode = "account code"
	ColumnAccountName = "account name"
)

// DetectFormat infers the input format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported file type: %s (expected .xlsx or .csv)", name)
}

// LoadFile opens a spreadsheet from disk and normalizes it.
func LoadFile(path string) (*ledger.PeriodTable, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Load(filepath.Base(path), f, format)
}

// Load reads a spreadsheet from r and normalizes it. name is only used to label the
// resulting table and any MalformedInputError.
func Load(name string, r io.Reader, format Format) (*ledger.PeriodTable, error) {
	var rows [][]string
	var err error

	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	table, err := Normalize(name, rows)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded trial balance", "file", name, "format", string(format), "rows", table.Len(), "accounts", len(table.Codes()))
	return table, nil
}

// readXLSX returns the raw cell values of the workbook's first sheet.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV returns all records of a delimited text table.
func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	csvr := csv.NewReader(bytes.NewReader(data))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	return csvr.ReadAll()
}

// Normalize turns raw rows (header first) into a PeriodTable.
func Normalize(name string, rows [][]string) (*ledger.PeriodTable, error) {
	var header []string
	if len(rows) > 0 {
		header = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = normalizeHeader(h)
		}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, exists := index[h]; !exists {
			index[h] = i
		}
	}

	// Debit and credit are required
	for _, col := range []string{ColumnDebit, ColumnCredit} {
		if _, ok := index[col]; !ok {
			return nil, &MalformedInputError{
				File:       name,
				Column:     col,
				Suggestion: suggestHeader(col, header),
			}
		}
	}

	codeIdx, hasCodes := index[ColumnAccountCode]
	nameIdx, hasNames := index[ColumnAccountName]

	table := &ledger.PeriodTable{Source: name, NoCodeColumn: !hasCodes}

	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rowNum := i + 2

		debit, err := parseAmount(cell(row, index[ColumnDebit]))
		if err != nil {
			return nil, &MalformedInputError{File: name, Column: ColumnDebit, Row: rowNum, Value: cell(row, index[ColumnDebit])}
		}
		credit, err := parseAmount(cell(row, index[ColumnCredit]))
		if err != nil {
			return nil, &MalformedInputError{File: name, Column: ColumnCredit, Row: rowNum, Value: cell(row, index[ColumnCredit])}
		}

		var code, accountName string
		if hasCodes {
			code = strings.TrimSpace(cell(row, codeIdx))
		}
		if hasNames {
			accountName = strings.TrimSpace(cell(row, nameIdx))
		}

		table.Records = append(table.Records, ledger.NewAccountRecord(code, accountName, debit, credit))
	}

	return table, nil
}

// Helper functions

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseAmount parses a numeric cell. Empty cells are zero. Thousands separators,
// a leading currency symbol and accounting-style parentheses are accepted.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
