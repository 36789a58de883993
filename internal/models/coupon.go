package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    time.Time       `json:"valid_until"`
	MaxUses       int             `json:"max_uses"`
	Uses          int             `json:"uses"`
	Active        bool            `json:"active"`
	CreatedBy     *uuid.UUID      `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CouponPatch décrit une mise à jour partielle (nil = inchangé).
type CouponPatch struct {
	Code          *string          `json:"code"`
	DiscountType  *DiscountType    `json:"discount_type"`
	DiscountValue *decimal.Decimal `json:"discount_value"`
	ValidFrom     *time.Time       `json:"valid_from"`
	ValidUntil    *time.Time       `json:"valid_until"`
	MaxUses       *int             `json:"max_uses"`
	Active        *bool            `json:"active"`
}

// Apply reporte le patch sur une copie du coupon.
func (p CouponPatch) Apply(c Coupon) Coupon {
	if p.Code != nil {
		c.Code = *p.Code
	}
	if p.DiscountType != nil {
		c.DiscountType = *p.DiscountType
	}
	if p.DiscountValue != nil {
		c.DiscountValue = *p.DiscountValue
	}
	if p.ValidFrom != nil {
		c.ValidFrom = *p.ValidFrom
	}
	if p.ValidUntil != nil {
		c.ValidUntil = *p.ValidUntil
	}
	if p.MaxUses != nil {
		c.MaxUses = *p.MaxUses
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	return c
}

type CouponRedemption struct {
	ID         uuid.UUID       `json:"id"`
	CouponID   uuid.UUID       `json:"coupon"`
	UserID     uuid.UUID       `json:"user"`
	OrderID    uuid.UUID       `json:"order"`
	Discount   decimal.Decimal `json:"discount"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}
