package loader

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// MalformedInputError reports an uploaded table that cannot be turned into a PeriodTable.
// Processing of the request stops when this error is returned.
type MalformedInputError struct {
	File       string // Source file name
	Column     string // Canonical column name involved
	Row        int    // 1-based spreadsheet row, 0 when the problem is structural
	Value      string // Offending cell value, if any
	Suggestion string // Closest header present in the file, if any
}

func (e *MalformedInputError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("malformed input in %q: ", e.File))

	if e.Row == 0 {
		sb.WriteString(fmt.Sprintf("missing required column %q", e.Column))
		if e.Suggestion != "" {
			sb.WriteString(fmt.Sprintf(" (did you mean %q?)", e.Suggestion))
		}
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("row %d: column %q has non-numeric value %q", e.Row, e.Column, e.Value))
	return sb.String()
}

// maxSuggestionDistance bounds how far a header may be from the wanted name to be suggested.
const maxSuggestionDistance = 3

// suggestHeader returns the header closest to want, or "" when nothing is close enough.
// Headers that already match a canonical column are never suggested.
func suggestHeader(want string, headers []string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, h := range headers {
		if h == "" || isCanonical(h) {
			continue
		}
		d := levenshtein.ComputeDistance(want, h)
		if d < bestDist {
			best = h
			bestDist = d
		}
	}
	return best
}

func isCanonical(h string) bool {
	switch h {
	case ColumnDebit, ColumnCredit, ColumnAccountCode, ColumnAccountName:
		return true
	}
	return false
}
