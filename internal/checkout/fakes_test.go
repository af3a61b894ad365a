package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/catalog"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/coupon"
	"github.com/noah-isme/backend-checkout/internal/lock"
	"github.com/noah-isme/backend-checkout/internal/order"
	"github.com/noah-isme/backend-checkout/internal/payment"
	"github.com/noah-isme/backend-checkout/internal/user"
)

func stock(n int64) *int64 { return &n }

type fakeCatalog struct {
	mu    sync.Mutex
	byID  map[int64]catalog.Product
	calls int
}

func newCatalog() *fakeCatalog {
	products := []catalog.Product{
		{ID: 1, Code: "MUG", Title: "Mug", PriceCents: 1000, Stock: stock(5), Active: true, WeightGrams: 300},
		{ID: 2, Code: "TEE", Title: "T-shirt", PriceCents: 4990, Active: true, WeightGrams: 200},
		{ID: 3, Code: "OLD", Title: "Retired", PriceCents: 100, Active: false},
	}
	c := &fakeCatalog{byID: map[int64]catalog.Product{}}
	for _, p := range products {
		c.byID[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) ProductByID(_ context.Context, id int64) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	p, ok := c.byID[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) ProductByCode(_ context.Context, code string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for _, p := range c.byID {
		if p.Code == code {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

type fakeAddresses struct {
	calls int
}

func (f *fakeAddresses) GetAddress(_ context.Context, customerID, addressID string) (user.Address, error) {
	f.calls++
	if customerID != "cust-1" || addressID != "addr-1" {
		return user.Address{}, common.AddressNotFound(addressID)
	}
	return user.Address{ID: "addr-1", Recipient: "Ana", Line1: "Rua A, 10", City: "Recife", PostalCode: "50000000", Country: "BR"}, nil
}

func (f *fakeAddresses) GetCustomer(_ context.Context, customerID string) (user.Customer, error) {
	if customerID != "cust-1" {
		return user.Customer{}, user.ErrCustomerNotFound
	}
	return user.Customer{ID: customerID, Email: "ana@example.com", Name: "Ana"}, nil
}

type fakeCoupons struct {
	rules map[string]int64
	calls int
}

func (f *fakeCoupons) Evaluate(_ context.Context, code string, subtotal int64) (coupon.Discount, error) {
	f.calls++
	amount, ok := f.rules[coupon.NormalizeCode(code)]
	if !ok {
		return coupon.Discount{}, common.CouponInvalid(code, coupon.ErrNotFound)
	}
	return coupon.Discount{Code: coupon.NormalizeCode(code), Amount: min(amount, subtotal)}, nil
}

// memOrders stages writes per transaction and only publishes them on commit.
type memOrders struct {
	mu        sync.Mutex
	orders    map[string]order.Order
	stock     map[int64]int64
	redeemed  map[string]int
	couponCap map[string]int
	seq       int
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders:    map[string]order.Order{},
		stock:     map[int64]int64{1: 5},
		redeemed:  map[string]int{},
		couponCap: map[string]int{},
	}
}

func (m *memOrders) WithTx(ctx context.Context, fn func(order.Writer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, orders: map[string]order.Order{}, stock: map[int64]int64{}, redeemed: map[string]int{}}
	for k, v := range m.stock {
		tx.stock[k] = v
	}
	for k, v := range m.redeemed {
		tx.redeemed[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.orders {
		m.orders[k] = v
	}
	m.stock = tx.stock
	m.redeemed = tx.redeemed
	return nil
}

type memTx struct {
	m        *memOrders
	orders   map[string]order.Order
	stock    map[int64]int64
	redeemed map[string]int
}

func (t *memTx) CreateOrder(_ context.Context, o order.NewOrder) (order.Order, error) {
	t.m.seq++
	id := fmt.Sprintf("order-%d", t.m.seq)
	created := order.Order{
		ID:              id,
		CustomerID:      o.CustomerID,
		AddressID:       o.AddressID,
		Status:          order.StatusPendingPayment,
		Currency:        o.Currency,
		Subtotal:        o.Summary.Subtotal,
		Shipping:        o.Summary.Shipping,
		Discount:        o.Summary.Discount,
		Total:           o.Summary.Total,
		CouponCode:      o.CouponCode,
		ShippingMethod:  o.Shipping,
		ShippingAddress: o.Address,
	}
	t.orders[id] = created
	return created, nil
}

func (t *memTx) RecordItems(_ context.Context, orderID string, items []cart.Item) error {
	o := t.orders[orderID]
	for _, it := range items {
		if left, tracked := t.stock[it.Product.ID]; tracked {
			if left < int64(it.Quantity) {
				return common.InsufficientStock(it.Product.Code, int64(it.Quantity), left)
			}
			t.stock[it.Product.ID] = left - int64(it.Quantity)
		}
		o.Items = append(o.Items, order.Item{ProductID: it.Product.ID, ProductCode: it.Product.Code, Title: it.Product.Title, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	t.orders[orderID] = o
	return nil
}

func (t *memTx) RedeemCoupon(_ context.Context, code string) error {
	if limit, ok := t.m.couponCap[code]; ok && t.redeemed[code] >= limit {
		return common.CouponInvalid(code, coupon.ErrUsageLimitReached)
	}
	t.redeemed[code]++
	return nil
}

func (t *memTx) AttachPaymentPreference(_ context.Context, orderID, preferenceID, redirectURL string) error {
	o, ok := t.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.PaymentPreferenceID = preferenceID
	o.PaymentRedirectURL = redirectURL
	t.orders[orderID] = o
	return nil
}

type recordingScheduler struct {
	scheduled []string
	err       error
}

func (r *recordingScheduler) Schedule(_ context.Context, orderID string) error {
	r.scheduled = append(r.scheduled, orderID)
	return r.err
}

type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return lock.ErrNotAcquired
}

type fixture struct {
	svc       *Service
	catalog   *fakeCatalog
	addresses *fakeAddresses
	coupons   *fakeCoupons
	orders    *memOrders
	payments  *payment.Mock
	expiry    *recordingScheduler
}

func newFixture() *fixture {
	f := &fixture{
		catalog:   newCatalog(),
		addresses: &fakeAddresses{},
		coupons:   &fakeCoupons{rules: map[string]int64{"SAVE3": 300, "HUGE": 1_000_000}},
		orders:    newMemOrders(),
		payments:  payment.NewMock("http://pay.test"),
		expiry:    &recordingScheduler{},
	}
	f.svc = &Service{
		Addresses:  f.addresses,
		Items:      &cart.Resolver{Products: f.catalog},
		Coupons:    f.coupons,
		Orders:     f.orders,
		Payments:   &payment.Service{Provider: f.payments},
		Expiry:     f.expiry,
		Currency:   "BRL",
		PaymentTTL: time.Hour,
		Now:        func() time.Time { return time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC) },
	}
	return f
}
