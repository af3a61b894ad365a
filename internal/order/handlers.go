package order

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Reader loads a customer's orders.
type Reader interface {
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int64, error)
	GetForCustomer(ctx context.Context, customerID, orderID string) (Order, error)
}

// Handler serves the customer's order history. Orders of other customers are
// reported as not found.
type Handler struct {
	Orders Reader
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customer(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, defaultPageSize)
	perPage = min(perPage, maxPageSize)

	orders, total, err := h.Orders.ListForCustomer(r.Context(), customerID, perPage, (page-1)*perPage)
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	if err != nil {
		writeOrderError(w, r, err, "list orders")
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, ok := customer(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.GetForCustomer(r.Context(), customerID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(w, r, err, "load order")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.UserID(r.Context())
	if !ok || id == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return id, true
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	if !common.IsAppError(err) {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("order_id", chi.URLParam(r, "orderID")).Msg(op)
	}
	common.WriteError(w, err)
}
