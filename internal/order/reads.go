package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, customer_id, address_id, status, currency, subtotal_cents, shipping_cents,
	discount_cents, total_cents, COALESCE(coupon_code, ''), shipping_carrier, shipping_service, shipping_days,
	shipping_address, COALESCE(payment_preference_id, ''), COALESCE(payment_redirect_url, ''),
	COALESCE(payment_id, ''), expires_at, created_at, updated_at`

// ListForCustomer returns a page of the customer's orders, newest first, and the total count.
func (s *Store) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int64, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return nil, 0, ErrNotFound
	}
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	orders := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// GetForCustomer loads one order with its items. Orders owned by other customers
// are reported as ErrNotFound.
func (s *Store) GetForCustomer(ctx context.Context, customerID, orderID string) (Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, ErrNotFound
	}
	if _, err := uuid.Parse(customerID); err != nil {
		return Order{}, ErrNotFound
	}
	o, err := scanOrder(s.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND customer_id = $2`, orderID, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, product_code, title, unit_price_cents, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductCode, &it.Title, &it.UnitPrice, &it.Quantity); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o          Order
		id, custID uuid.UUID
		addrID     uuid.UUID
		address    []byte
	)
	if err := row.Scan(&id, &custID, &addrID, &o.Status, &o.Currency, &o.Subtotal, &o.Shipping,
		&o.Discount, &o.Total, &o.CouponCode, &o.ShippingMethod.Carrier, &o.ShippingMethod.Service, &o.ShippingMethod.Days,
		&address, &o.PaymentPreferenceID, &o.PaymentRedirectURL, &o.PaymentID, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.ID, o.CustomerID, o.AddressID = id.String(), custID.String(), addrID.String()
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return o, nil
}
