package order

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-checkout/internal/common"
)

// Canceller closes orders on behalf of an operator.
type Canceller interface {
	Cancel(ctx context.Context, orderID, reason string) error
}

// AdminHandler provides administrative order endpoints.
type AdminHandler struct {
	Orders Canceller
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel closes an order and returns its stock and coupon usage.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, nil, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "cancelled by operator"
	}
	orderID := chi.URLParam(r, "orderID")
	if err := h.Orders.Cancel(r.Context(), orderID, reason); err != nil {
		writeOrderError(w, r, err, "cancel order")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": orderID, "status": StatusCancelled}})
}
