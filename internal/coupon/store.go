package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-checkout/internal/database"
)

// Store reads and redeems coupons in Postgres.
type Store struct {
	DB database.DBTX
}

// NewStore constructs a Store over a pool or a transaction.
func NewStore(db database.DBTX) *Store {
	return &Store{DB: db}
}

// GetByCode loads the coupon rule for code.
func (s *Store) GetByCode(ctx context.Context, code string) (Rule, error) {
	var r Rule
	err := s.DB.QueryRow(ctx, `
		SELECT code, kind, value, percent_bps, max_discount, min_spend, usage_limit, used_count, valid_from, valid_to, active
		FROM coupons WHERE code = $1`, NormalizeCode(code),
	).Scan(&r.Code, &r.Kind, &r.Value, &r.PercentBps, &r.MaxDiscount, &r.MinSpend, &r.UsageLimit, &r.UsedCount, &r.ValidFrom, &r.ValidTo, &r.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, fmt.Errorf("get coupon: %w", err)
	}
	return r, nil
}

// Redeem increments the usage counter unless the usage limit is already reached.
func (s *Store) Redeem(ctx context.Context, code string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND active AND (usage_limit IS NULL OR used_count < usage_limit)`, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageLimitReached
	}
	return nil
}

// Release gives back one usage, used when an unpaid order is cancelled.
func (s *Store) Release(ctx context.Context, code string) error {
	if _, err := s.DB.Exec(ctx, `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0) WHERE code = $1`, NormalizeCode(code)); err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}
	return nil
}
