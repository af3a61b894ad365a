package shipping

import (
	"context"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/common"
)

// ItemResolver is satisfied by *cart.Resolver.
type ItemResolver interface {
	Resolve(ctx context.Context, lines []cart.Line, opts cart.ResolveOptions) ([]cart.Item, error)
}

// Quoter is satisfied by *Service.
type Quoter interface {
	Quote(ctx context.Context, postalCode string, items []cart.Item) ([]Option, error)
}

type quoteRequest struct {
	Items       []cart.Line `json:"items" validate:"required,min=1"`
	Destination struct {
		PostalCode string `json:"postal_code" validate:"required"`
	} `json:"destination"`
}

// Handler exposes the shipping quote endpoint.
type Handler struct {
	Items    ItemResolver
	Quotes   Quoter
	Validate *validator.Validate
}

// Quote handles POST /api/v1/shipping/quote. Items are resolved against the
// catalog first so parcels carry real weights and dimensions.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Items == nil || h.Quotes == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	items, err := h.Items.Resolve(r.Context(), req.Items, cart.ResolveOptions{})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	options, err := h.Quotes.Quote(r.Context(), req.Destination.PostalCode, items)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": options})
}
