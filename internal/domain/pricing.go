package domain

import "github.com/shopspring/decimal"

// Total sums price * quantity over items.
func Total(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// FormatAmount renders an amount with exactly two decimals ("20.00").
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
