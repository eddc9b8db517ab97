package domain

import "github.com/shopspring/decimal"

// Totals sums line totals and quantities. Cart totals are always derived
// through here, never patched incrementally.
func Totals(lines []CartLine) (decimal.Decimal, int) {
	price := decimal.Zero
	quantity := 0
	for _, line := range lines {
		price = price.Add(line.LineTotal)
		quantity += line.Quantity
	}
	return price, quantity
}
