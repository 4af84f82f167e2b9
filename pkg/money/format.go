// Package money formats decimal amounts for people. Exports never use it: they write
// plain decimals.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSymbol is the currency symbol used when none is configured.
const DefaultSymbol = "$"

// Unavailable is shown in place of a percentage that cannot be computed.
const Unavailable = "n/a"

// Format renders d with thousands separators and the given number of decimals,
// e.g. Format(-1234.5, 2) = "-1,234.50".
// Digits are grouped from the exact decimal string, so no amount loses precision.
func Format(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	negative := strings.HasPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(strings.TrimPrefix(s, "-"), ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Currency renders d rounded to a whole unit behind symbol, e.g. "$1,235".
// Negative amounts keep their sign in front of the symbol.
func Currency(symbol string, d decimal.Decimal) string {
	return CurrencyFixed(symbol, d, 0)
}

// CurrencyFixed is Currency with the given number of decimals, e.g. "-$1,500.00".
func CurrencyFixed(symbol string, d decimal.Decimal, places int32) string {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	if d.Round(places).IsNegative() {
		return "-" + symbol + Format(d.Abs(), places)
	}
	return symbol + Format(d, places)
}

// Percent renders p with the given decimals and a trailing "%", or Unavailable.
func Percent(p decimal.NullDecimal, places int32) string {
	if !p.Valid {
		return Unavailable
	}
	return p.Decimal.StringFixed(places) + "%"
}
