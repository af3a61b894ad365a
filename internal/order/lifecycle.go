package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/coupon"
	"github.com/noah-isme/backend-checkout/internal/database"
	"github.com/noah-isme/backend-checkout/internal/pricing"
)

type lockedOrder struct {
	status     string
	total      int64
	couponCode *string
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (lockedOrder, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return lockedOrder{}, ErrNotFound
	}
	var o lockedOrder
	err := tx.QueryRow(ctx, `SELECT status, total_cents, coupon_code FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&o.status, &o.total, &o.couponCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return lockedOrder{}, ErrNotFound
	}
	if err != nil {
		return lockedOrder{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// MarkPaid records an approved payment. Repeated notifications for a paid order
// are accepted. A positive amount must equal the order total.
func (s *Store) MarkPaid(ctx context.Context, orderID, paymentID string, amount pricing.Money) error {
	return database.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch o.status {
		case StatusPaid:
			return nil
		case StatusPendingPayment:
		default:
			return ErrNotPending
		}
		if amount > 0 && amount != o.total {
			return ErrAmountMismatch
		}
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, payment_id = $3, updated_at = now() WHERE id = $1`,
			orderID, StatusPaid, paymentID)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		return nil
	})
}

// Cancel closes a pending or paid order, returning its units to stock and its
// coupon usage. Cancelling a closed order is a no-op.
func (s *Store) Cancel(ctx context.Context, orderID, reason string) error {
	return database.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.status == StatusCancelled || o.status == StatusExpired {
			return nil
		}
		if err := closeOrder(ctx, tx, orderID, o, StatusCancelled); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("order_id", orderID).Str("previous_status", o.status).Str("reason", reason).Msg("order cancelled")
		return nil
	})
}

// Expire closes an order whose payment window elapsed. It reports false when the
// order is no longer awaiting payment.
func (s *Store) Expire(ctx context.Context, orderID string) (bool, error) {
	expired := false
	err := database.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.status != StatusPendingPayment {
			return nil
		}
		if err := closeOrder(ctx, tx, orderID, o, StatusExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// DuePending returns ids of pending orders whose payment window has elapsed.
func (s *Store) DuePending(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= now()
		ORDER BY expires_at LIMIT $2`, StatusPendingPayment, limit)
	if err != nil {
		return nil, fmt.Errorf("list due orders: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due order: %w", err)
		}
		ids = append(ids, id.String())
	}
	return ids, rows.Err()
}

func closeOrder(ctx context.Context, tx pgx.Tx, orderID string, o lockedOrder, status string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE products p SET stock = p.stock + oi.qty, updated_at = now()
		FROM (SELECT product_id, SUM(quantity) AS qty FROM order_items WHERE order_id = $1 GROUP BY product_id) oi
		WHERE p.id = oi.product_id AND p.stock IS NOT NULL`, orderID); err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if o.couponCode != nil && *o.couponCode != "" {
		if err := coupon.NewStore(tx).Release(ctx, *o.couponCode); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
