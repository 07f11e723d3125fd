// Package money holds the currency helpers shared by orders, configuration and reports.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the zero currency amount.
var Zero = decimal.Zero

// Cents rounds to two decimal places, half away from zero.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromCents converts an integer cents amount into dollars.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Parse accepts user or backend supplied amounts such as "12", "12.5", "$1,234.56" or "".
// Blank input parses to zero.
func Parse(raw string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}

// FromJSON converts a raw JSON number or string into a decimal. Null decodes to zero.
func FromJSON(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("decode amount: %w", err)
		}
		return Parse(s)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", trimmed, err)
	}
	return d, nil
}

// Format renders an amount as US currency, e.g. "$1,234.56" or "-$3.10".
func Format(d decimal.Decimal) string {
	rounded := Cents(d)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	fixed := rounded.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return sign + "$" + grouped.String() + "." + frac
}

// Sum adds the provided amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
