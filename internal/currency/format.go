// Package currency formats monetary amounts for customer-facing text.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount the way the customer app shows it: dollar
// sign, comma thousands separators, two decimals, e.g. "$1,250.75".
func FormatUSD(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
