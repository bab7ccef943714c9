package order

import (
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the sales tax applied to every order.
var DefaultTaxRate = decimal.RequireFromString("0.10")

// Totals holds the derived amounts of a cart or order.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals applies DefaultTaxRate to the given lines.
func ComputeTotals(items []LineItem) Totals {
	return computeTotals(items, DefaultTaxRate)
}

// computeTotals returns subtotal = Σ unitPrice × quantity, tax = subtotal ×
// rate rounded to 2 places, and total = subtotal + tax.
func computeTotals(items []LineItem, rate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.LineTotal())
	}
	tax := subtotal.Mul(rate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
