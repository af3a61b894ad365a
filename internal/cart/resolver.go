package cart

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-checkout/internal/catalog"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/pricing"
)

// ProductLookup finds catalog products. Implementations return catalog.ErrNotFound
// for unknown references.
type ProductLookup interface {
	ProductByID(ctx context.Context, id int64) (catalog.Product, error)
	ProductByCode(ctx context.Context, code string) (catalog.Product, error)
}

// Item is a cart line resolved against the catalog.
type Item struct {
	Product   catalog.Product
	Quantity  int
	UnitPrice int64
}

// Subtotal returns unit price times quantity.
func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// PricingItems converts resolved items into pricing inputs, keeping order.
func PricingItems(items []Item) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{
			Ref:       strconv.FormatInt(it.Product.ID, 10),
			Title:     it.Product.Title,
			Qty:       it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return out
}

// ResolveOptions tunes a single Resolve call.
type ResolveOptions struct {
	// AllowPriceOverride honours price_cents on request lines. Only trusted
	// callers should enable it.
	AllowPriceOverride bool
}

// Resolver validates cart lines against the catalog.
type Resolver struct {
	Products ProductLookup
}

// Resolve turns request lines into priced items. Lines with a non-positive quantity
// are skipped; the result keeps the order of the remaining lines.
func (r *Resolver) Resolve(ctx context.Context, lines []Line, opts ResolveOptions) ([]Item, error) {
	if r == nil || r.Products == nil {
		return nil, errors.New("cart resolver not configured")
	}
	if len(lines) == 0 {
		return nil, common.InvalidInput("items must not be empty")
	}
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		qty := line.Quantity.Value()
		if qty <= 0 {
			continue
		}
		if qty > math.MaxInt32 {
			return nil, common.InvalidInput("quantity is too large").WithDetails(map[string]any{"product": line.Reference()})
		}
		product, err := r.lookup(ctx, line)
		if err != nil {
			return nil, err
		}
		if !product.InStock(qty) {
			return nil, common.InsufficientStock(line.Reference(), qty, *product.Stock)
		}
		unit := product.PriceCents
		if opts.AllowPriceOverride && line.PriceCents != nil {
			if *line.PriceCents < 0 {
				return nil, common.InvalidInput("price_cents must not be negative").WithDetails(map[string]any{"product": line.Reference()})
			}
			unit = *line.PriceCents
		}
		items = append(items, Item{Product: product, Quantity: int(qty), UnitPrice: unit})
	}
	if len(items) == 0 {
		return nil, common.InvalidInput("no item has a positive quantity")
	}
	return items, nil
}

// lookup resolves line by the highest-priority reference it carries. Only the
// generic id falls back from catalog id to code; product_id never falls through.
func (r *Resolver) lookup(ctx context.Context, line Line) (catalog.Product, error) {
	ref := line.Reference()
	var (
		product catalog.Product
		err     error
	)
	switch {
	case line.ProductID > 0:
		product, err = r.Products.ProductByID(ctx, line.ProductID)
	case !line.ID.Empty():
		if id, ok := line.ID.Int64(); ok {
			product, err = r.Products.ProductByID(ctx, id)
			if errors.Is(err, catalog.ErrNotFound) {
				product, err = r.Products.ProductByCode(ctx, line.ID.String())
			}
		} else {
			product, err = r.Products.ProductByCode(ctx, line.ID.String())
		}
	case strings.TrimSpace(line.Code) != "":
		product, err = r.Products.ProductByCode(ctx, strings.TrimSpace(line.Code))
	default:
		return catalog.Product{}, common.InvalidInput("item must reference a product by product_id, id or code")
	}
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Product{}, common.ProductNotFound(ref)
		}
		return catalog.Product{}, err
	}
	if !product.Active {
		return catalog.Product{}, common.ProductNotFound(ref)
	}
	return product, nil
}
