// Package export writes the reconciled variance table as data. Numeric fields are plain
// decimals with no currency symbols or grouping so the output round-trips.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// percentPlaces bounds the decimals written for a variance percentage.
const percentPlaces = 6

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Variance Report"

// Header is the export column layout.
var Header = []string{
	"Account Code",
	"Account Name (current)",
	"Balance_Last",
	"Balance_Current",
	"Variance Amount",
	"Variance %",
	"Variance Highlighted",
}

// FormatFromPath infers the export format from a file extension. Anything that is not
// .xlsx is written as CSV.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseFormat parses "csv" or "xlsx".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format: %q", s)
}

// Write encodes rows in the given format.
func Write(w io.Writer, rows []reconcile.Row, format Format) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// Records converts rows into string records, header first. An unavailable percentage is
// an empty field.
func Records(rows []reconcile.Row) [][]string {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, Header)

	for _, r := range rows {
		percent := ""
		if r.VariancePercent.Valid {
			percent = r.VariancePercent.Decimal.Round(percentPlaces).String()
		}
		records = append(records, []string{
			r.AccountCode,
			r.AccountName,
			r.BalancePrior.String(),
			r.BalanceCurrent.String(),
			r.VarianceAmount.String(),
			percent,
			strconv.FormatBool(r.Flagged),
		})
	}

	return records
}

// WriteCSV writes rows as comma-separated values.
func WriteCSV(w io.Writer, rows []reconcile.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(rows)); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes rows to a single-sheet workbook with numeric cells.
func WriteXLSX(w io.Writer, rows []reconcile.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		var percent interface{}
		if r.VariancePercent.Valid {
			percent = r.VariancePercent.Decimal.Round(percentPlaces).InexactFloat64()
		}
		values := []interface{}{
			r.AccountCode,
			r.AccountName,
			r.BalancePrior.InexactFloat64(),
			r.BalanceCurrent.InexactFloat64(),
			r.VarianceAmount.InexactFloat64(),
			percent,
			r.Flagged,
		}

		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cellRef, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
