package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-checkout/internal/common"
)

// Handler serves the public product catalog.
type Handler struct {
	svc *Service
}

// NewHandler constructs a Handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers the catalog routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/products", h.Products)
	r.Get("/products/{ref}", h.ProductDetail)
}

// Products handles GET /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.svc.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, err := h.svc.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": page.Items,
		"pagination": common.Pagination{
			Page:       page.Page,
			PerPage:    page.Limit,
			TotalItems: int(page.Total),
		},
	})
}

// ProductDetail handles GET /products/{ref}; ref is a catalog id or a product code.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}
