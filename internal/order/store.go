package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/coupon"
	"github.com/noah-isme/backend-checkout/internal/database"
)

// Writer is the set of writes performed inside one checkout transaction.
type Writer interface {
	CreateOrder(ctx context.Context, o NewOrder) (Order, error)
	RecordItems(ctx context.Context, orderID string, items []cart.Item) error
	RedeemCoupon(ctx context.Context, code string) error
	AttachPaymentPreference(ctx context.Context, orderID, preferenceID, redirectURL string) error
}

// Store persists orders in Postgres.
type Store struct {
	DB database.Pool
}

// NewStore constructs a Store over a connection pool.
func NewStore(db database.Pool) *Store {
	return &Store{DB: db}
}

// WithTx runs fn with a Writer bound to a single transaction. Any error returned
// by fn rolls back every write made through the Writer.
func (s *Store) WithTx(ctx context.Context, fn func(Writer) error) error {
	return database.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txWriter{tx: tx})
	})
}

type txWriter struct {
	tx pgx.Tx
}

func (w *txWriter) CreateOrder(ctx context.Context, o NewOrder) (Order, error) {
	address, err := json.Marshal(o.Address)
	if err != nil {
		return Order{}, fmt.Errorf("encode shipping address: %w", err)
	}
	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}
	out := Order{
		CustomerID:      o.CustomerID,
		AddressID:       o.AddressID,
		Currency:        o.Currency,
		Subtotal:        o.Summary.Subtotal,
		Shipping:        o.Summary.Shipping,
		Discount:        o.Summary.Discount,
		Total:           o.Summary.Total,
		CouponCode:      o.CouponCode,
		ShippingMethod:  o.Shipping,
		ShippingAddress: o.Address,
	}
	if !o.ExpiresAt.IsZero() {
		expires := o.ExpiresAt
		out.ExpiresAt = &expires
	}
	var id uuid.UUID
	err = w.tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, address_id, shipping_address, currency,
			subtotal_cents, shipping_cents, discount_cents, total_cents, coupon_code,
			shipping_carrier, shipping_service, shipping_days, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, status, created_at, updated_at`,
		o.CustomerID, o.AddressID, address, o.Currency,
		o.Summary.Subtotal, o.Summary.Shipping, o.Summary.Discount, o.Summary.Total, couponCode,
		o.Shipping.Carrier, o.Shipping.Service, o.Shipping.Days, out.ExpiresAt,
	).Scan(&id, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	out.ID = id.String()
	return out, nil
}

// RecordItems snapshots each item and takes its units out of stock. The decrement
// is conditional so two concurrent checkouts can never oversell.
func (w *txWriter) RecordItems(ctx context.Context, orderID string, items []cart.Item) error {
	for _, it := range items {
		if _, err := w.tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_code, title, unit_price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, it.Product.ID, it.Product.Code, it.Product.Title, it.UnitPrice, it.Quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		tag, err := w.tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND (stock IS NULL OR stock >= $2)`,
			it.Product.ID, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			available := int64(-1)
			var stock *int64
			if err := w.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, it.Product.ID).Scan(&stock); err == nil && stock != nil {
				available = *stock
			}
			return common.InsufficientStock(productRef(it), int64(it.Quantity), available)
		}
	}
	return nil
}

func (w *txWriter) RedeemCoupon(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	err := coupon.NewStore(w.tx).Redeem(ctx, code)
	if errors.Is(err, coupon.ErrUsageLimitReached) {
		return common.CouponInvalid(code, err)
	}
	return err
}

func (w *txWriter) AttachPaymentPreference(ctx context.Context, orderID, preferenceID, redirectURL string) error {
	tag, err := w.tx.Exec(ctx, `
		UPDATE orders SET payment_preference_id = $2, payment_redirect_url = $3, updated_at = now()
		WHERE id = $1`, orderID, preferenceID, redirectURL)
	if err != nil {
		return fmt.Errorf("attach payment preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func productRef(it cart.Item) string {
	if it.Product.Code != "" {
		return it.Product.Code
	}
	return strconv.FormatInt(it.Product.ID, 10)
}
