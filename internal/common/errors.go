package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Checkout error taxonomy. Every AppError produced by the checkout pipeline wraps
// exactly one of these so callers can branch with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAddressNotFound   = errors.New("address not found")
	ErrCouponInvalid     = errors.New("coupon invalid")
	ErrPaymentGateway    = errors.New("payment gateway failure")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WithDetails attaches a details payload and returns the same error.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// InvalidInput reports a user-correctable request problem.
func InvalidInput(message string) *AppError {
	return taxonomyError("INVALID_INPUT", message, http.StatusBadRequest, ErrInvalidInput)
}

// ProductNotFound reports a cart reference that did not resolve to an active product.
func ProductNotFound(ref string) *AppError {
	return taxonomyError("PRODUCT_NOT_FOUND", fmt.Sprintf("product %s not found", ref), http.StatusNotFound, ErrProductNotFound).
		WithDetails(map[string]any{"product": ref})
}

// InsufficientStock reports a line asking for more units than the product has available.
func InsufficientStock(ref string, requested, available int64) *AppError {
	msg := fmt.Sprintf("insufficient stock for product %s", ref)
	details := map[string]any{"product": ref, "requested": requested}
	if available >= 0 {
		details["available"] = available
	}
	return taxonomyError("INSUFFICIENT_STOCK", msg, http.StatusConflict, ErrInsufficientStock).WithDetails(details)
}

// AddressNotFound reports an address that is missing or owned by another customer.
func AddressNotFound(id string) *AppError {
	return taxonomyError("ADDRESS_NOT_FOUND", "address not found", http.StatusNotFound, ErrAddressNotFound).
		WithDetails(map[string]any{"address_id": id})
}

// CouponInvalid reports a coupon that cannot be applied, with the evaluator's reason.
func CouponInvalid(code string, reason error) *AppError {
	msg := "coupon is not valid"
	if reason != nil {
		msg = fmt.Sprintf("coupon is not valid: %v", reason)
	}
	return taxonomyError("COUPON_INVALID", msg, http.StatusUnprocessableEntity, ErrCouponInvalid, reason).
		WithDetails(map[string]any{"coupon_code": code})
}

// PaymentGatewayFailure reports that the payment provider could not create a preference.
func PaymentGatewayFailure(cause error) *AppError {
	return taxonomyError("PAYMENT_GATEWAY_FAILURE", "payment provider unavailable, please try again", http.StatusBadGateway, ErrPaymentGateway, cause)
}

func taxonomyError(code, message string, status int, kind error, causes ...error) *AppError {
	var cause error
	for _, c := range causes {
		if c != nil {
			cause = c
			break
		}
	}
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %s: %w", kind, message, cause)
	} else {
		err = fmt.Errorf("%w: %s", kind, message)
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}
