package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTaxonomyErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    *AppError
		target error
		status int
	}{
		{"invalid input", InvalidInput("items are required"), ErrInvalidInput, http.StatusBadRequest},
		{"product", ProductNotFound("SKU-1"), ErrProductNotFound, http.StatusNotFound},
		{"stock", InsufficientStock("SKU-1", 3, 1), ErrInsufficientStock, http.StatusConflict},
		{"address", AddressNotFound("abc"), ErrAddressNotFound, http.StatusNotFound},
		{"coupon", CouponInvalid("WELCOME", errors.New("expired")), ErrCouponInvalid, http.StatusUnprocessableEntity},
		{"payment", PaymentGatewayFailure(errors.New("timeout")), ErrPaymentGateway, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("checkout: %w", tc.err)
			if !errors.Is(wrapped, tc.target) {
				t.Fatalf("expected %v to match %v", wrapped, tc.target)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, tc.err.HTTPStatus)
			}
		})
	}
}

func TestPaymentGatewayFailureKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := PaymentGatewayFailure(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through %v", err)
	}
}

func TestWriteErrorRendersAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("wrap: %w", ProductNotFound("42")))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	var body struct {
		Error ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "PRODUCT_NOT_FOUND" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("pq: relation does not exist"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	var body struct {
		Error ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Message != "internal error" {
		t.Fatalf("expected generic message, got %q", body.Error.Message)
	}
}
