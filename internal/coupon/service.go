package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-checkout/internal/common"
)

// Repository loads coupon rules.
type Repository interface {
	GetByCode(ctx context.Context, code string) (Rule, error)
}

// Discount is the outcome of a successful evaluation.
type Discount struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// Service evaluates coupon codes against an order subtotal.
type Service struct {
	Repo Repository
	Now  func() time.Time
}

// Evaluate returns the discount code yields for subtotal. An empty code yields a
// zero discount. Every rejection is reported as a COUPON_INVALID error.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal int64) (Discount, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Discount{}, nil
	}
	if s == nil || s.Repo == nil {
		return Discount{}, errors.New("coupon service not configured")
	}
	rule, err := s.Repo.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Discount{}, common.CouponInvalid(normalized, err)
		}
		return Discount{}, err
	}
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return Discount{}, common.CouponInvalid(normalized, err)
	}
	return Discount{Code: rule.Code, Amount: rule.Compute(subtotal)}, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
