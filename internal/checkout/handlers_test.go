package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-checkout/internal/common"
)

func serve(t *testing.T, h *Handler, customerID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if customerID != "" {
		req = req.WithContext(common.WithUserID(req.Context(), customerID))
	}
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)
	return rec
}

func TestCheckoutHandlerCreatesOrder(t *testing.T) {
	f := newFixture()
	h := &Handler{Svc: f.svc, Validate: common.NewValidator()}
	body := `{
		"items":[{"id":1,"quantity":2}],
		"address_id":"addr-1",
		"shipping":{"carrier":"Correios","name":"PAC","price_cents":500,"delivery_time_days":7},
		"coupon_code":"SAVE3"
	}`
	rec := serve(t, h, "cust-1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.Data.OrderID)
	assert.Equal(t, "mock-order-1", resp.Data.PaymentPreferenceID)
	assert.NotEmpty(t, resp.Data.PaymentRedirectURL)
	assert.Equal(t, "PAC", f.orders.orders["order-1"].ShippingMethod.Service)
}

func TestCheckoutHandlerValidationErrors(t *testing.T) {
	f := newFixture()
	h := &Handler{Svc: f.svc, Validate: common.NewValidator()}

	rec := serve(t, h, "cust-1", `{"items":[],"address_id":"addr-1","shipping":{"carrier":"x","service":"y"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	assert.Contains(t, rec.Body.String(), `"items"`)

	rec = serve(t, h, "cust-1", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.catalog.calls)
}

func TestCheckoutHandlerMapsTaxonomy(t *testing.T) {
	f := newFixture()
	h := &Handler{Svc: f.svc, Validate: common.NewValidator()}
	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"items":[{"id":"GHOST"}],"address_id":"addr-1","shipping":{"carrier":"c","service":"s"}}`, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{`{"items":[{"id":1,"quantity":9}],"address_id":"addr-1","shipping":{"carrier":"c","service":"s"}}`, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{`{"items":[{"id":1}],"address_id":"addr-9","shipping":{"carrier":"c","service":"s"}}`, http.StatusNotFound, "ADDRESS_NOT_FOUND"},
		{`{"items":[{"id":1}],"address_id":"addr-1","shipping":{"carrier":"c","service":"s"},"coupon_code":"NOPE"}`, http.StatusUnprocessableEntity, "COUPON_INVALID"},
	}
	for _, tc := range cases {
		rec := serve(t, h, "cust-1", tc.body)
		assert.Equal(t, tc.status, rec.Code, tc.body)
		assert.Contains(t, rec.Body.String(), tc.code)
	}
}

func TestCheckoutHandlerRequiresAuth(t *testing.T) {
	h := &Handler{Svc: newFixture().svc}
	rec := serve(t, h, "", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingPlacer struct{}

func (failingPlacer) Create(context.Context, string, Request) (Result, error) {
	return Result{}, assert.AnError
}

func TestCheckoutHandlerHidesUnknownErrors(t *testing.T) {
	h := &Handler{Svc: failingPlacer{}}
	rec := serve(t, h, "cust-1", `{"items":[{"id":1}],"address_id":"a","shipping":{"carrier":"c","service":"s"}}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
