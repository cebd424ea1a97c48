package domain

import "time"

type CouponType string

const (
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFixedAmount  CouponType = "fixed_amount"
	CouponTypeFreeShipping CouponType = "free_shipping"
)

// Coupon is a store discount code. Value is a percentage for percentage
// coupons and an amount in cents for fixed_amount ones.
type Coupon struct {
	ID                   string     `json:"id"`
	StoreID              string     `json:"storeId,omitempty"`
	Code                 string     `json:"code"`
	Name                 string     `json:"name"`
	Type                 CouponType `json:"type"`
	Value                int64      `json:"value"`
	MinimumAmountCents   int64      `json:"minimumAmountCents,omitempty"`
	MaximumDiscountCents int64      `json:"maximumDiscountCents,omitempty"`
	UsageLimit           *int       `json:"usageLimit,omitempty"`
	UsedCount            int        `json:"usedCount"`
	IsActive             bool       `json:"isActive"`
	StartsAt             time.Time  `json:"startsAt"`
	ExpiresAt            time.Time  `json:"expiresAt"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Exhausted reports whether the usage limit has been reached.
func (c Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// ActiveAt reports whether the coupon may be applied at t.
func (c Coupon) ActiveAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if t.Before(c.StartsAt) {
		return false
	}
	if !c.ExpiresAt.IsZero() && t.After(c.ExpiresAt) {
		return false
	}
	return true
}
