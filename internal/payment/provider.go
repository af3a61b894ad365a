package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-checkout/internal/pricing"
)

// Payment statuses reported by providers.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

// ErrPaymentNotFound is returned when the provider has no payment with the given id.
var ErrPaymentNotFound = errors.New("payment not found")

// Payer identifies the buyer to the provider.
type Payer struct {
	Email string
	Name  string
}

// PreferenceRequest carries everything needed to open a hosted checkout.
type PreferenceRequest struct {
	OrderID   string
	Currency  string
	Items     []pricing.LineItem
	Payer     Payer
	ExpiresAt time.Time
}

// Preference identifies the hosted checkout created by the provider.
type Preference struct {
	ID          string
	RedirectURL string
}

// PaymentInfo is the provider's view of a payment.
type PaymentInfo struct {
	ID      string
	Status  string
	OrderID string
	Amount  decimal.Decimal
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
	GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error)
}
