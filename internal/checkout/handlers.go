package checkout

import (
	"context"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/common"
)

// Placer is satisfied by *Service.
type Placer interface {
	Create(ctx context.Context, customerID string, req Request) (Result, error)
}

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      Placer
	Validate *validator.Validate
}

// Checkout handles POST /api/v1/orders.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	customerID, ok := common.UserID(r.Context())
	if !ok || customerID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req Request
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Create(r.Context(), customerID, req)
	if err != nil {
		if !common.IsAppError(err) || errors.Is(err, common.ErrPaymentGateway) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("checkout failed")
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
