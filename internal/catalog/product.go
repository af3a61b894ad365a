package catalog

import "errors"

// ErrNotFound is returned when no product matches the lookup.
var ErrNotFound = errors.New("product not found")

// Product is a sellable catalog entry. Stock is nil for products that do not
// track inventory.
type Product struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Stock       *int64 `json:"stock,omitempty"`
	Active      bool   `json:"active"`
	WeightGrams int    `json:"weight_grams"`
	WidthCm     int    `json:"width_cm"`
	HeightCm    int    `json:"height_cm"`
	LengthCm    int    `json:"length_cm"`
}

// TracksStock reports whether the product has a finite stock level.
func (p Product) TracksStock() bool {
	return p.Stock != nil
}

// InStock reports whether at least qty units can be sold.
func (p Product) InStock(qty int64) bool {
	return p.Stock == nil || *p.Stock >= qty
}
