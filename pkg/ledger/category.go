package ledger

import (
	"fmt"
	"strings"
)

// Category is the statement bucket an account falls into.
type Category string

const (
	CategoryIncome  Category = "Income"
	CategoryExpense Category = "Expense"
	CategoryOther   Category = "Other"
)

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return CategoryIncome, nil
	case "expense":
		return CategoryExpense, nil
	case "other":
		return CategoryOther, nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

func (c Category) String() string {
	return string(c)
}
