package coupon

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// Manager gère le CRUD des coupons (vendeurs et admins).
type Manager struct {
	coupons Repository
	journal utils.Journal
	logger  *zap.Logger
}

func NewManager(coupons Repository, journal utils.Journal, logger *zap.Logger) *Manager {
	return &Manager{coupons: coupons, journal: journal, logger: logger}
}

// Validate contrôle la cohérence d'un coupon avant écriture.
func Validate(c models.Coupon) error {
	if c.Code == "" {
		return &FieldError{Field: "code", Message: "This field may not be blank."}
	}
	switch c.DiscountType {
	case models.DiscountPercentage:
		if !c.DiscountValue.IsPositive() || c.DiscountValue.GreaterThan(hundred) {
			return &FieldError{Field: "discount_value", Message: "Percentage discount must be between 0 and 100."}
		}
	case models.DiscountFixed:
		if !c.DiscountValue.IsPositive() {
			return &FieldError{Field: "discount_value", Message: "Fixed discount must be greater than 0."}
		}
	default:
		return &FieldError{Field: "discount_type", Message: `"` + string(c.DiscountType) + `" is not a valid choice.`}
	}
	if c.ValidFrom.IsZero() {
		return &FieldError{Field: "valid_from", Message: "This field is required."}
	}
	if c.ValidUntil.IsZero() {
		return &FieldError{Field: "valid_until", Message: "This field is required."}
	}
	if c.ValidUntil.Before(c.ValidFrom) {
		return &FieldError{Field: "valid_until", Message: "valid_until must be after valid_from."}
	}
	if c.MaxUses < 0 {
		return &FieldError{Field: "max_uses", Message: "Ensure this value is greater than or equal to 0."}
	}
	return nil
}

func (m *Manager) List(ctx context.Context, page models.Page) (models.PageResult[models.Coupon], error) {
	items, total, err := m.coupons.List(ctx, page)
	if err != nil {
		return models.PageResult[models.Coupon]{}, err
	}
	return models.NewPageResult(items, total, page), nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return m.coupons.Get(ctx, id)
}

func (m *Manager) Create(ctx context.Context, actor models.Actor, c models.Coupon) (*models.Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	if err := Validate(c); err != nil {
		return nil, err
	}
	c.CreatedBy = &actor.UserID
	if err := m.coupons.Create(ctx, &c); err != nil {
		return nil, err
	}
	m.record(ctx, actor, utils.ActionCouponCreate, c.ID, "", c.Code)
	return &c, nil
}

func (m *Manager) Update(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.CouponPatch) (*models.Coupon, error) {
	current, err := m.coupons.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*current)
	updated.Code = NormalizeCode(updated.Code)
	if err := Validate(updated); err != nil {
		return nil, err
	}
	if err := m.coupons.Update(ctx, &updated); err != nil {
		return nil, err
	}
	m.record(ctx, actor, utils.ActionCouponUpdate, id, current.Code, updated.Code)
	return &updated, nil
}

func (m *Manager) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if err := m.coupons.Delete(ctx, id); err != nil {
		return err
	}
	m.record(ctx, actor, utils.ActionCouponDelete, id, "", "")
	return nil
}

func (m *Manager) record(ctx context.Context, actor models.Actor, action string, id uuid.UUID, oldValue, newValue string) {
	m.journal.Record(ctx, models.AuditLog{
		UserID:     actor.UserID.String(),
		Action:     action,
		Resource:   utils.ResourceCoupon,
		ResourceID: id.String(),
		OldValue:   oldValue,
		NewValue:   newValue,
		Success:    true,
	})
}
