package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in minor units.
type Money = int64

// ShippingTitle labels the synthetic payment line carrying the shipping cost.
const ShippingTitle = "Shipping"

// Item describes a line item used for pricing calculation.
type Item struct {
	Ref       string
	Title     string
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// LineItem is a payment gateway line with its unit price in major currency units.
type LineItem struct {
	ID        string          `json:"id,omitempty"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Breakdown is the full result handed to order persistence and the payment gateway.
type Breakdown struct {
	Summary Summary
	Lines   []LineItem
	// Residual is Total minus the sum of the discounted lines, in minor units.
	// Per-unit rounding leaves it non-zero for some quantities; it is reported, not corrected.
	Residual Money
}

// Subtotal sums unit price times quantity, skipping non-positive quantities.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute calculates order totals. The discount is expected to be clamped to the
// subtotal already; the total is floored at zero regardless.
func Compute(items []Item, discount Money, shipping Money) Summary {
	subtotal := Subtotal(items)
	if discount < 0 {
		discount = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	total := subtotal + shipping - discount
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    total,
	}
}

// Lines builds one payment line per item plus a shipping line when shipping > 0.
func Lines(items []Item, shipping Money) []LineItem {
	lines := make([]LineItem, 0, len(items)+1)
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		lines = append(lines, LineItem{
			ID:        it.Ref,
			Title:     it.Title,
			Quantity:  it.Qty,
			UnitPrice: ToMajor(it.UnitPrice),
		})
	}
	if shipping > 0 {
		lines = append(lines, LineItem{Title: ShippingTitle, Quantity: 1, UnitPrice: ToMajor(shipping)})
	}
	return lines
}

// Allocate spreads discount over lines greedily in order: each line with a positive
// subtotal absorbs as much of the remaining discount as it can, and its unit price
// is recomputed from the reduced line subtotal with half-up rounding. Lines after
// the discount is exhausted keep their price. The input slice is not modified.
func Allocate(lines []LineItem, discount Money) []LineItem {
	out := make([]LineItem, len(lines))
	copy(out, lines)
	if discount <= 0 {
		return out
	}
	remaining := discount
	for i := range out {
		qty := Money(out[i].Quantity)
		if qty <= 0 {
			continue
		}
		lineSubtotal := ToMinor(out[i].UnitPrice) * qty
		if lineSubtotal <= 0 {
			continue
		}
		deduction := min(lineSubtotal, remaining)
		remaining -= deduction
		unit := roundHalfUp(lineSubtotal-deduction, qty)
		if unit < 0 {
			unit = 0
		}
		out[i].UnitPrice = ToMajor(unit)
	}
	return out
}

// Build runs the whole pricing pipeline for resolved items, a shipping cost and a
// validated discount.
func Build(items []Item, shipping Money, discount Money) Breakdown {
	summary := Compute(items, discount, shipping)
	lines := Allocate(Lines(items, summary.Shipping), summary.Discount)
	return Breakdown{
		Summary:  summary,
		Lines:    lines,
		Residual: summary.Total - LinesTotal(lines),
	}
}

// LinesTotal sums quantity times unit price over lines, in minor units.
func LinesTotal(lines []LineItem) Money {
	var total Money
	for _, l := range lines {
		total += ToMinor(l.UnitPrice) * Money(l.Quantity)
	}
	return total
}

// ToMajor converts minor units to a decimal amount in major units.
func ToMajor(m Money) decimal.Decimal {
	return decimal.New(m, -2)
}

// ToMinor converts a major-unit decimal to minor units, rounding half away from zero.
func ToMinor(d decimal.Decimal) Money {
	return d.Shift(2).Round(0).IntPart()
}

// roundHalfUp divides a non-negative numerator by a positive denominator, rounding .5 up.
func roundHalfUp(num, den Money) Money {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}
