package coupon

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no coupon has the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned for disabled coupons or before the validity window opens.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned once the validity window has closed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon has exhausted its global usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinimumSpendUnmet indicates the subtotal did not meet the coupon requirement.
	ErrMinimumSpendUnmet = errors.New("coupon minimum spend not met")
)

const (
	KindFixed   = "fixed"
	KindPercent = "percent"
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code        string
	Kind        string
	Value       int64
	PercentBps  *int32
	MaxDiscount *int64
	MinSpend    int64
	UsageLimit  *int32
	UsedCount   int32
	ValidFrom   *time.Time
	ValidTo     *time.Time
	Active      bool
}

// Validate ensures the rule can be applied at the provided instant and subtotal.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if !r.Active {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if subtotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Compute determines the discount for subtotal, clamped to [0, subtotal].
func (r Rule) Compute(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return 0
		}
		discount = (subtotal * int64(*r.PercentBps)) / 10000
	}
	if r.MaxDiscount != nil && *r.MaxDiscount >= 0 && discount > *r.MaxDiscount {
		discount = *r.MaxDiscount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
