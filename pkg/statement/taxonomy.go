// Package statement classifies accounts by keyword and builds the profit & loss and
// balance sheet views of a period.
package statement

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
)

// Rule maps a set of name keywords to a category.
type Rule struct {
	Category ledger.Category
	Keywords []string
}

// Taxonomy is an ordered list of rules. The first rule with a keyword contained in the
// account name wins; names matching no rule are CategoryOther.
type Taxonomy struct {
	rules []Rule
}

// RuleConfig is one entry of a taxonomy YAML file.
type RuleConfig struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// TaxonomyConfig is the structure of a taxonomy YAML file:
//
//	rules:
//	  - category: Income
//	    keywords: [revenue, sales, income]
//	  - category: Expense
//	    keywords: [expense, cost, salary, rent, depreciation]
type TaxonomyConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// DefaultTaxonomy returns the built-in keyword lists, Income checked before Expense.
func DefaultTaxonomy() *Taxonomy {
	t, _ := NewTaxonomy([]Rule{
		{Category: ledger.CategoryIncome, Keywords: []string{"Revenue", "Sales", "Income"}},
		{Category: ledger.CategoryExpense, Keywords: []string{"Expense", "Cost", "Salary", "Rent", "Depreciation"}},
	})
	return t
}

// NewTaxonomy builds a taxonomy from rules, keeping their order.
func NewTaxonomy(rules []Rule) (*Taxonomy, error) {
	t := &Taxonomy{rules: make([]Rule, 0, len(rules))}

	for i, rule := range rules {
		if rule.Category == "" {
			return nil, fmt.Errorf("rule %d: category is required", i+1)
		}

		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("rule %d (%s): empty keyword", i+1, rule.Category)
			}
			keywords = append(keywords, kw)
		}

		t.rules = append(t.rules, Rule{Category: rule.Category, Keywords: keywords})
	}

	return t, nil
}

// LoadTaxonomy reads a taxonomy from a YAML file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy parses taxonomy YAML.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var config TaxonomyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Rules) == 0 {
		return nil, fmt.Errorf("taxonomy has no rules")
	}

	rules := make([]Rule, 0, len(config.Rules))
	for _, rc := range config.Rules {
		category, err := ledger.ParseCategory(rc.Category)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Category: category, Keywords: rc.Keywords})
	}

	return NewTaxonomy(rules)
}

// Classify returns the category for an account name.
func (t *Taxonomy) Classify(name string) ledger.Category {
	lower := strings.ToLower(name)
	for _, rule := range t.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category
			}
		}
	}
	return ledger.CategoryOther
}

// Rules returns a copy of the taxonomy's rules with lower-cased keywords.
func (t *Taxonomy) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = Rule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
