package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	items := []Item{{Ref: "A", Qty: 2, UnitPrice: 1000}, {Ref: "B", Qty: 1, UnitPrice: 250}}
	summary := Compute(items, 300, 500)
	assert.Equal(t, Money(2250), summary.Subtotal)
	assert.Equal(t, Money(2450), summary.Total)
	assert.Equal(t, Money(300), summary.Discount)
	assert.Equal(t, Money(500), summary.Shipping)
}

func TestComputeFloorsTotalAtZero(t *testing.T) {
	summary := Compute([]Item{{Qty: 1, UnitPrice: 1000}}, 5000, 500)
	assert.Equal(t, Money(0), summary.Total)
	assert.Equal(t, Money(5000), summary.Discount)
}

func TestComputeIgnoresNegativeInputs(t *testing.T) {
	summary := Compute([]Item{{Qty: 1, UnitPrice: 1000}, {Qty: 0, UnitPrice: 999}}, -10, -5)
	assert.Equal(t, Summary{Subtotal: 1000, Total: 1000}, summary)
}

func TestBuildSingleLineScenario(t *testing.T) {
	b := Build([]Item{{Ref: "A", Title: "Mug", Qty: 2, UnitPrice: 1000}}, 500, 300)

	require.Equal(t, Summary{Subtotal: 2000, Discount: 300, Shipping: 500, Total: 2200}, b.Summary)
	require.Len(t, b.Lines, 2)
	assert.True(t, b.Lines[0].UnitPrice.Equal(decimal.RequireFromString("8.50")), "got %s", b.Lines[0].UnitPrice)
	assert.Equal(t, 2, b.Lines[0].Quantity)
	assert.Equal(t, ShippingTitle, b.Lines[1].Title)
	assert.True(t, b.Lines[1].UnitPrice.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, Money(2200), LinesTotal(b.Lines))
	assert.Zero(t, b.Residual)
}

func TestAllocateIsGreedyInLineOrder(t *testing.T) {
	items := []Item{
		{Ref: "A", Qty: 1, UnitPrice: 1000},
		{Ref: "B", Qty: 1, UnitPrice: 500},
	}
	b := Build(items, 0, 1000)
	require.Len(t, b.Lines, 2)
	assert.True(t, b.Lines[0].UnitPrice.IsZero(), "first line absorbs the whole discount")
	assert.True(t, b.Lines[1].UnitPrice.Equal(decimal.RequireFromString("5")), "second line untouched")
	assert.Equal(t, Money(500), b.Summary.Total)
}

func TestAllocateDiscountBeyondSubtotalAndShipping(t *testing.T) {
	items := []Item{{Ref: "A", Qty: 1, UnitPrice: 1000}}
	b := Build(items, 500, 2000)
	assert.Equal(t, Money(0), b.Summary.Total)
	for _, l := range b.Lines {
		assert.False(t, l.UnitPrice.IsNegative(), "line %s negative", l.Title)
		assert.True(t, l.UnitPrice.IsZero())
	}
	assert.Zero(t, b.Residual)
}

func TestAllocateWithoutDiscountKeepsPrices(t *testing.T) {
	lines := Lines([]Item{{Ref: "A", Qty: 3, UnitPrice: 333}}, 0)
	out := Allocate(lines, 0)
	require.Len(t, out, 1)
	assert.Equal(t, Money(333), ToMinor(out[0].UnitPrice))
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	lines := Lines([]Item{{Ref: "A", Qty: 1, UnitPrice: 1000}}, 0)
	_ = Allocate(lines, 400)
	assert.Equal(t, Money(1000), ToMinor(lines[0].UnitPrice))
}

func TestAllocateRoundingResidual(t *testing.T) {
	// 3 x 10.00 minus 10.00 leaves 20.00 over three units: 6.67 each, one cent over.
	b := Build([]Item{{Ref: "A", Qty: 3, UnitPrice: 1000}}, 0, 1000)
	assert.True(t, b.Lines[0].UnitPrice.Equal(decimal.RequireFromString("6.67")))
	assert.Equal(t, Money(-1), b.Residual)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, Money(850), roundHalfUp(1700, 2))
	assert.Equal(t, Money(667), roundHalfUp(2000, 3))
	assert.Equal(t, Money(3), roundHalfUp(5, 2))
	assert.Equal(t, Money(0), roundHalfUp(0, 4))
	assert.Equal(t, Money(0), roundHalfUp(10, 0))
}

func TestBuildInvariantsOverRandomCarts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		count := 1 + rng.Intn(5)
		items := make([]Item, count)
		for i := range items {
			items[i] = Item{Ref: "X", Qty: 1 + rng.Intn(6), UnitPrice: Money(rng.Intn(20000))}
		}
		shipping := Money(rng.Intn(3000))
		subtotal := Subtotal(items)
		var discount Money
		if subtotal > 0 {
			discount = Money(rng.Int63n(subtotal + 1))
		}

		b := Build(items, shipping, discount)

		var sum Money
		for _, it := range items {
			sum += it.UnitPrice * Money(it.Qty)
		}
		require.Equal(t, sum, b.Summary.Subtotal)
		require.Equal(t, max(0, sum+shipping-discount), b.Summary.Total)

		var tolerance Money
		for _, l := range b.Lines {
			require.False(t, l.UnitPrice.IsNegative())
			tolerance += Money(l.Quantity / 2)
		}
		require.Equal(t, b.Summary.Total-LinesTotal(b.Lines), b.Residual)
		require.LessOrEqual(t, abs(b.Residual), tolerance, "cart %d residual %d", n, b.Residual)
	}
}

func abs(v Money) Money {
	if v < 0 {
		return -v
	}
	return v
}
