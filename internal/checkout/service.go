package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/coupon"
	"github.com/noah-isme/backend-checkout/internal/lock"
	"github.com/noah-isme/backend-checkout/internal/obs"
	"github.com/noah-isme/backend-checkout/internal/order"
	"github.com/noah-isme/backend-checkout/internal/payment"
	"github.com/noah-isme/backend-checkout/internal/pricing"
	"github.com/noah-isme/backend-checkout/internal/shipping"
	"github.com/noah-isme/backend-checkout/internal/user"
)

// Request is the checkout payload.
type Request struct {
	Items      []cart.Line        `json:"items" validate:"required,min=1"`
	AddressID  string             `json:"address_id" validate:"required"`
	Shipping   shipping.Selection `json:"shipping"`
	CouponCode string             `json:"coupon_code" validate:"max=64"`
}

// Result identifies the created order and where the buyer completes payment.
type Result struct {
	OrderID             string `json:"order_id"`
	PaymentPreferenceID string `json:"payment_preference_id"`
	PaymentRedirectURL  string `json:"payment_redirect_url"`
}

// Collaborators. The concrete types live in their own packages; tests swap in fakes.
type (
	AddressBook interface {
		GetAddress(ctx context.Context, customerID, addressID string) (user.Address, error)
		GetCustomer(ctx context.Context, customerID string) (user.Customer, error)
	}
	ItemResolver interface {
		Resolve(ctx context.Context, lines []cart.Line, opts cart.ResolveOptions) ([]cart.Item, error)
	}
	CouponEvaluator interface {
		Evaluate(ctx context.Context, code string, subtotal int64) (coupon.Discount, error)
	}
	OrderPersister interface {
		WithTx(ctx context.Context, fn func(order.Writer) error) error
	}
	PreferenceCreator interface {
		CreatePreference(ctx context.Context, req payment.PreferenceRequest) (payment.Preference, error)
	}
	ExpiryScheduler interface {
		Schedule(ctx context.Context, orderID string) error
	}
	Locker interface {
		WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
	}
)

// ErrCheckoutInProgress is wrapped when another checkout of the same customer holds the lock.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// Service runs the checkout pipeline: resolve items, price them, persist the order
// and create the payment preference inside one transaction.
type Service struct {
	Addresses  AddressBook
	Items      ItemResolver
	Coupons    CouponEvaluator
	Orders     OrderPersister
	Payments   PreferenceCreator
	Expiry     ExpiryScheduler
	Lock       Locker
	LockTTL    time.Duration
	Currency   string
	PaymentTTL time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Create places an order for customerID. Validation failures are reported before
// any collaborator is called. When the payment preference cannot be created the
// order transaction is rolled back and nothing is persisted.
func (s *Service) Create(ctx context.Context, customerID string, req Request) (Result, error) {
	start := time.Now()
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Create")
	defer span.End()

	res, err := s.create(ctx, customerID, req)
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("checkout.result", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.String("order.id", res.OrderID))
	}
	obs.ObserveCheckout(outcome, time.Since(start))
	return res, err
}

func (s *Service) create(ctx context.Context, customerID string, req Request) (Result, error) {
	if err := s.validate(customerID, req); err != nil {
		return Result{}, err
	}
	if s.Lock == nil {
		return s.place(ctx, customerID, req)
	}
	var res Result
	err := s.Lock.WithLock(ctx, "checkout:"+customerID, s.lockTTL(), func(ctx context.Context) error {
		var err error
		res, err = s.place(ctx, customerID, req)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return Result{}, common.NewAppError("CHECKOUT_IN_PROGRESS", "another checkout is in progress for this customer", http.StatusConflict,
			errors.Join(ErrCheckoutInProgress, err))
	}
	return res, err
}

func (s *Service) validate(customerID string, req Request) error {
	if s == nil || s.Addresses == nil || s.Items == nil || s.Orders == nil || s.Payments == nil {
		return errors.New("checkout service not configured")
	}
	if strings.TrimSpace(customerID) == "" {
		return common.InvalidInput("customer is required")
	}
	if len(req.Items) == 0 {
		return common.InvalidInput("items must not be empty")
	}
	if strings.TrimSpace(req.AddressID) == "" {
		return common.InvalidInput("address_id is required")
	}
	if req.Shipping.Carrier == "" || req.Shipping.Service == "" {
		return common.InvalidInput("shipping carrier and service are required")
	}
	return nil
}

func (s *Service) place(ctx context.Context, customerID string, req Request) (Result, error) {
	log := s.Logger.With().Str("customer_id", customerID).Logger()

	items, err := s.Items.Resolve(ctx, req.Items, cart.ResolveOptions{
		AllowPriceOverride: common.HasRole(ctx, "admin"),
	})
	if err != nil {
		return Result{}, err
	}
	address, err := s.Addresses.GetAddress(ctx, customerID, strings.TrimSpace(req.AddressID))
	if err != nil {
		return Result{}, err
	}
	payer, err := s.payer(ctx, customerID)
	if err != nil {
		return Result{}, err
	}

	pricingItems := cart.PricingItems(items)
	subtotal := pricing.Subtotal(pricingItems)
	var discount coupon.Discount
	if strings.TrimSpace(req.CouponCode) != "" {
		if s.Coupons == nil {
			return Result{}, errors.New("coupon evaluator not configured")
		}
		discount, err = s.Coupons.Evaluate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return Result{}, err
		}
	}
	breakdown := pricing.Build(pricingItems, req.Shipping.Cost(), min(max(discount.Amount, 0), subtotal))
	if breakdown.Residual != 0 {
		log.Debug().Int64("residual", breakdown.Residual).Msg("discount allocation left a rounding residual")
	}

	now := s.now()
	expiresAt := now.Add(s.paymentTTL())
	var res Result
	err = s.Orders.WithTx(ctx, func(w order.Writer) error {
		created, err := w.CreateOrder(ctx, order.NewOrder{
			CustomerID: customerID,
			AddressID:  address.ID,
			Address:    snapshot(address),
			Currency:   s.Currency,
			Summary:    breakdown.Summary,
			CouponCode: discount.Code,
			Shipping: order.Shipping{
				Carrier: req.Shipping.Carrier,
				Service: req.Shipping.Service,
				Days:    req.Shipping.DeliveryTimeDays,
			},
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return err
		}
		if err := w.RecordItems(ctx, created.ID, items); err != nil {
			return err
		}
		if discount.Code != "" {
			if err := w.RedeemCoupon(ctx, discount.Code); err != nil {
				return err
			}
		}
		pref, err := s.Payments.CreatePreference(ctx, payment.PreferenceRequest{
			OrderID:   created.ID,
			Currency:  s.Currency,
			Items:     breakdown.Lines,
			Payer:     payer,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return err
		}
		if err := w.AttachPaymentPreference(ctx, created.ID, pref.ID, pref.RedirectURL); err != nil {
			return err
		}
		res = Result{OrderID: created.ID, PaymentPreferenceID: pref.ID, PaymentRedirectURL: pref.RedirectURL}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.Info().Str("order_id", res.OrderID).Int64("total", breakdown.Summary.Total).Msg("order placed")
	if s.Expiry != nil {
		if err := s.Expiry.Schedule(ctx, res.OrderID); err != nil {
			log.Warn().Err(err).Str("order_id", res.OrderID).Msg("schedule order expiry failed")
		}
	}
	return res, nil
}

func (s *Service) payer(ctx context.Context, customerID string) (payment.Payer, error) {
	c, err := s.Addresses.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, user.ErrCustomerNotFound) {
			return payment.Payer{}, nil
		}
		return payment.Payer{}, err
	}
	return payment.Payer{Email: c.Email, Name: c.Name}, nil
}

func snapshot(a user.Address) order.Address {
	return order.Address{
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) paymentTTL() time.Duration {
	if s.PaymentTTL > 0 {
		return s.PaymentTTL
	}
	return 24 * time.Hour
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 30 * time.Second
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, common.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, common.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, common.ErrAddressNotFound):
		return "address_not_found"
	case errors.Is(err, common.ErrCouponInvalid):
		return "coupon_invalid"
	case errors.Is(err, common.ErrPaymentGateway):
		return "payment_failure"
	case errors.Is(err, ErrCheckoutInProgress):
		return "locked"
	default:
		return "error"
	}
}
