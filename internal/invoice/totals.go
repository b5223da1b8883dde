package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed pricing policy, not per-invoice inputs.
var (
	DiscountRate = decimal.RequireFromString("0.10")
	TaxRate      = decimal.RequireFromString("0.08")
)

// Totals are derived from the line items and never stored on the draft.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives the totals for items:
//
//	subtotal = Σ quantity·price
//	discount = subtotal·DiscountRate
//	taxable  = subtotal − discount
//	tax      = taxable·TaxRate
//	total    = taxable + tax
//
// Non-finite quantities or prices count as 0.
func ComputeTotals(items []LineItem) Totals {
	subtotal := decimal.Zero
	for _, li := range items {
		qty := decimal.NewFromInt(int64(li.Quantity))
		price := decimal.NewFromFloat(finite(li.Price))
		subtotal = subtotal.Add(qty.Mul(price))
	}

	discount := subtotal.Mul(DiscountRate)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(TaxRate)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Taxable:  taxable,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}

// Money renders d with exactly two fraction digits.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// String renders the totals block shown under the line items.
func (t Totals) String() string {
	rows := [][2]string{
		{"Subtotal", Money(t.Subtotal)},
		{fmt.Sprintf("Discount (%s%%)", DiscountRate.Shift(2)), "-" + Money(t.Discount)},
		{fmt.Sprintf("Tax (%s%%)", TaxRate.Shift(2)), Money(t.Tax)},
		{"Total", Money(t.Total)},
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-16s %10s", row[0]+":", row[1])
	}
	return b.String()
}
