package order

import (
	"errors"
	"time"

	"github.com/noah-isme/backend-checkout/internal/pricing"
)

// Order statuses.
const (
	StatusPendingPayment = "pending_payment"
	StatusPaid           = "paid"
	StatusCancelled      = "cancelled"
	StatusExpired        = "expired"
)

var (
	// ErrNotFound is returned when an order does not exist or belongs to someone else.
	ErrNotFound = errors.New("order not found")
	// ErrNotPending is returned when a transition requires an order awaiting payment.
	ErrNotPending = errors.New("order is not awaiting payment")
	// ErrAmountMismatch is returned when a payment does not cover the order total.
	ErrAmountMismatch = errors.New("payment amount does not match order total")
)

// Address is the shipping address snapshot stored with an order.
type Address struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Shipping describes the carrier service chosen at checkout.
type Shipping struct {
	Carrier string `json:"carrier"`
	Service string `json:"service"`
	Days    int    `json:"delivery_time_days"`
}

// NewOrder is the header written when checkout starts persisting.
type NewOrder struct {
	CustomerID string
	AddressID  string
	Address    Address
	Currency   string
	Summary    pricing.Summary
	CouponCode string
	Shipping   Shipping
	ExpiresAt  time.Time
}

// Item is an immutable snapshot of a purchased product.
type Item struct {
	ProductID   int64  `json:"product_id"`
	ProductCode string `json:"product_code"`
	Title       string `json:"title"`
	UnitPrice   int64  `json:"unit_price_cents"`
	Quantity    int    `json:"quantity"`
}

// Order is a persisted order header with its items.
type Order struct {
	ID                  string     `json:"id"`
	CustomerID          string     `json:"-"`
	AddressID           string     `json:"address_id"`
	Status              string     `json:"status"`
	Currency            string     `json:"currency"`
	Subtotal            int64      `json:"subtotal_cents"`
	Shipping            int64      `json:"shipping_cents"`
	Discount            int64      `json:"discount_cents"`
	Total               int64      `json:"total_cents"`
	CouponCode          string     `json:"coupon_code,omitempty"`
	ShippingMethod      Shipping   `json:"shipping_method"`
	ShippingAddress     Address    `json:"shipping_address"`
	PaymentPreferenceID string     `json:"payment_preference_id,omitempty"`
	PaymentRedirectURL  string     `json:"payment_redirect_url,omitempty"`
	PaymentID           string     `json:"payment_id,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Items               []Item     `json:"items,omitempty"`
}
