package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/pricing"
	"github.com/noah-isme/backend-checkout/internal/shipping"
)

func lines(t *testing.T, raw string) []cart.Line {
	t.Helper()
	var out []cart.Line
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func baseRequest(t *testing.T) Request {
	return Request{
		Items:     lines(t, `[{"product_id":1,"quantity":2}]`),
		AddressID: "addr-1",
		Shipping:  shipping.Selection{Carrier: "Correios", Service: "PAC", PriceCents: 500, DeliveryTimeDays: 7},
	}
}

func TestCreatePlacesOrderWithDiscountedPaymentLines(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.CouponCode = "save3"

	res, err := f.svc.Create(context.Background(), "cust-1", req)
	require.NoError(t, err)
	require.Equal(t, "order-1", res.OrderID)
	require.Equal(t, "mock-order-1", res.PaymentPreferenceID)
	require.Equal(t, "http://pay.test/mock/checkout/mock-order-1", res.PaymentRedirectURL)

	stored := f.orders.orders[res.OrderID]
	assert.Equal(t, int64(2000), stored.Subtotal)
	assert.Equal(t, int64(300), stored.Discount)
	assert.Equal(t, int64(500), stored.Shipping)
	assert.Equal(t, int64(2200), stored.Total)
	assert.Equal(t, "SAVE3", stored.CouponCode)
	assert.Equal(t, "mock-order-1", stored.PaymentPreferenceID)
	assert.Equal(t, "Recife", stored.ShippingAddress.City)
	assert.Equal(t, int64(3), f.orders.stock[1])
	assert.Equal(t, 1, f.orders.redeemed["SAVE3"])

	reqs := f.payments.Requests()
	require.Len(t, reqs, 1)
	pay := reqs[0]
	assert.Equal(t, "BRL", pay.Currency)
	assert.Equal(t, "ana@example.com", pay.Payer.Email)
	require.Len(t, pay.Items, 2)
	assert.True(t, pay.Items[0].UnitPrice.Equal(decimal.RequireFromString("8.50")))
	assert.Equal(t, 2, pay.Items[0].Quantity)
	assert.Equal(t, pricing.ShippingTitle, pay.Items[1].Title)
	assert.True(t, pay.Items[1].UnitPrice.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, int64(2200), pricing.LinesTotal(pay.Items))

	assert.Equal(t, []string{"order-1"}, f.expiry.scheduled)
}

func TestCreateRejectsEmptyItemsBeforeAnyCollaborator(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.Items = nil

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Zero(t, f.catalog.calls)
	assert.Zero(t, f.addresses.calls)
	assert.Zero(t, f.coupons.calls)
	assert.Empty(t, f.payments.Requests())
	assert.Empty(t, f.orders.orders)
}

func TestCreateRequiresShippingSelection(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.Shipping = shipping.Selection{}
	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Zero(t, f.catalog.calls)
}

func TestCreatePaymentFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.payments.Err = errors.New("gateway down")
	req := baseRequest(t)
	req.CouponCode = "SAVE3"

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrPaymentGateway)

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAYMENT_GATEWAY_FAILURE", appErr.Code)

	assert.Empty(t, f.orders.orders)
	assert.Equal(t, int64(5), f.orders.stock[1])
	assert.Zero(t, f.orders.redeemed["SAVE3"])
	assert.Empty(t, f.expiry.scheduled)
}

func TestCreateInactiveProductFailsBeforePersistence(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.Items = lines(t, `[{"id":"OLD","quantity":1}]`)

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrProductNotFound)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.payments.Requests())
}

func TestCreateInsufficientStockLeavesStockUntouched(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.Items = lines(t, `[{"product_id":2,"quantity":1},{"code":"MUG","quantity":"6"}]`)

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrInsufficientStock)
	assert.Equal(t, int64(5), f.orders.stock[1])
	assert.Empty(t, f.orders.orders)
}

func TestCreateForeignAddressIsNotFound(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.AddressID = "addr-2"

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrAddressNotFound)
	assert.Empty(t, f.orders.orders)
}

func TestCreateInvalidCouponStopsCheckout(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.CouponCode = "NOPE"

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrCouponInvalid)
	assert.Empty(t, f.orders.orders)
}

func TestCreateExhaustedCouponRollsBack(t *testing.T) {
	f := newFixture()
	f.orders.couponCap["SAVE3"] = 0
	req := baseRequest(t)
	req.CouponCode = "SAVE3"

	_, err := f.svc.Create(context.Background(), "cust-1", req)
	require.ErrorIs(t, err, common.ErrCouponInvalid)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, int64(5), f.orders.stock[1])
}

func TestCreateDiscountBeyondTotalFloorsAtZero(t *testing.T) {
	f := newFixture()
	req := baseRequest(t)
	req.CouponCode = "HUGE"

	res, err := f.svc.Create(context.Background(), "cust-1", req)
	require.NoError(t, err)
	stored := f.orders.orders[res.OrderID]
	assert.Equal(t, int64(2000), stored.Discount)
	assert.Equal(t, int64(500), stored.Total)

	pay := f.payments.Requests()[0]
	assert.True(t, pay.Items[0].UnitPrice.IsZero())
	assert.True(t, pay.Items[1].UnitPrice.Equal(decimal.RequireFromString("5")))
}

func TestCreatePriceOverrideRequiresAdmin(t *testing.T) {
	req := baseRequest(t)
	req.Items = lines(t, `[{"product_id":2,"quantity":1,"price_cents":100}]`)

	f := newFixture()
	res, err := f.svc.Create(context.Background(), "cust-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(4990), f.orders.orders[res.OrderID].Subtotal)

	f = newFixture()
	ctx := common.WithRoles(context.Background(), []string{"admin"})
	res, err = f.svc.Create(ctx, "cust-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(100), f.orders.orders[res.OrderID].Subtotal)
}

func TestCreateScheduleFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture()
	f.expiry.err = errors.New("redis down")
	res, err := f.svc.Create(context.Background(), "cust-1", baseRequest(t))
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
}

func TestCreateReportsBusyCustomerLock(t *testing.T) {
	f := newFixture()
	f.svc.Lock = busyLocker{}
	_, err := f.svc.Create(context.Background(), "cust-1", baseRequest(t))
	require.ErrorIs(t, err, ErrCheckoutInProgress)

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CHECKOUT_IN_PROGRESS", appErr.Code)
	assert.Zero(t, f.catalog.calls)
}
