package model

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)
var one = decimal.NewFromInt(1)

// Totals holds the aggregate amounts of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LineAmount computes the payable amount of a single line:
// price * quantity * (1 - discount/100), rounded to two places.
//
// Rounding happens per line, never on the aggregates. Summing unrounded
// line values and rounding once would give different cent-level results
// on some inputs, so the order matters.
func LineAmount(price decimal.Decimal, quantity int, discountPercent decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	factor := one.Sub(discountPercent.Div(hundred))
	return price.Mul(qty).Mul(factor).Round(2)
}

// ComputeTotals sums pre-rounded line amounts and applies the flat tax rate.
// Pure function: identical inputs yield identical output.
func ComputeTotals(items []InvoiceItem, taxRatePercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount)
	}
	tax := subtotal.Mul(taxRatePercent.Div(hundred))
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// DisplayUnitPrice derives the unit price shown on the document from the
// stored amount, so that price, discount and amount always reconcile on the
// printed invoice: amount / quantity / (1 - discount/100).
//
// At discount == 100 the divisor is zero; the stored unit price is returned
// instead so no non-finite value can reach the rendered document.
func DisplayUnitPrice(it InvoiceItem) decimal.Decimal {
	if it.Quantity < 1 {
		return it.Price
	}
	factor := one.Sub(it.Discount.Div(hundred))
	if factor.IsZero() {
		return it.Price
	}
	qty := decimal.NewFromInt(int64(it.Quantity))
	return it.Amount.Div(qty).Div(factor)
}
