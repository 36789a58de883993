// Package coupon valide et applique les codes de réduction.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/utils"
)

// Redemption est l'utilisation d'un coupon sur une commande.
type Redemption struct {
	CouponID uuid.UUID
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Discount decimal.Decimal
}

// Repository est le stockage des coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	HasRedeemed(ctx context.Context, couponID, userID uuid.UUID) (bool, error)
	// Redeem enregistre l'utilisation, incrémente uses et réduit le montant
	// de la commande dans une seule transaction. Renvoie ErrUsageLimit,
	// ErrAlreadyUsed ou ErrOrderNotOpen si une écriture concurrente gagne.
	Redeem(ctx context.Context, r Redemption) (*models.Order, error)

	List(ctx context.Context, page models.Page) ([]models.Coupon, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Orders donne accès à la commande ciblée.
type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type ApplyInput struct {
	Code    string
	OrderID uuid.UUID
	UserID  uuid.UUID
}

type ApplyResult struct {
	Order    *models.Order
	Discount decimal.Decimal
}

type Validator struct {
	coupons Repository
	orders  Orders
	journal utils.Journal
	logger  *zap.Logger
	now     func() time.Time
}

func NewValidator(coupons Repository, orders Orders, journal utils.Journal, logger *zap.Logger) *Validator {
	return &Validator{
		coupons: coupons,
		orders:  orders,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}
}

// NormalizeCode met le code au format stocké.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check applique les règles de validité d'un coupon pour un utilisateur.
func (v *Validator) Check(ctx context.Context, c *models.Coupon, userID uuid.UUID) error {
	if !c.Active {
		return ErrInactive
	}
	now := v.now()
	if now.Before(c.ValidFrom) {
		return ErrNotYetValid
	}
	if now.After(c.ValidUntil) {
		return ErrExpired
	}
	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return ErrUsageLimit
	}
	used, err := v.coupons.HasRedeemed(ctx, c.ID, userID)
	if err != nil {
		return errors.Wrap(err, "check redemption")
	}
	if used {
		return ErrAlreadyUsed
	}
	return nil
}

// Apply valide le code et applique la réduction à la commande pending.
func (v *Validator) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	c, err := v.coupons.FindByCode(ctx, NormalizeCode(in.Code))
	if err != nil {
		return nil, err
	}

	o, err := v.orders.Get(ctx, in.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != in.UserID {
		return nil, ErrForbidden
	}

	if err := v.Check(ctx, c, in.UserID); err != nil {
		return nil, err
	}
	if o.Status != models.OrderPending {
		return nil, ErrOrderNotOpen
	}
	if o.Discount.IsPositive() {
		return nil, ErrAlreadyApplied
	}

	discount := Discount(c.DiscountType, c.DiscountValue, o.Amount)
	updated, err := v.coupons.Redeem(ctx, Redemption{
		CouponID: c.ID,
		UserID:   in.UserID,
		OrderID:  o.ID,
		Discount: discount,
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("🎟️ Coupon appliqué",
		zap.String("code", c.Code),
		zap.String("order_id", o.ID.String()),
		zap.String("discount", discount.StringFixed(2)),
	)
	v.journal.Record(ctx, models.AuditLog{
		UserID:     in.UserID.String(),
		Action:     utils.ActionCouponApply,
		Resource:   utils.ResourceCoupon,
		ResourceID: c.ID.String(),
		NewValue:   o.ID.String() + ":" + discount.StringFixed(2),
		Success:    true,
	})
	return &ApplyResult{Order: updated, Discount: discount}, nil
}

// Discount calcule la réduction, arrondie au centime et plafonnée au montant.
func Discount(kind models.DiscountType, value, amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch kind {
	case models.DiscountPercentage:
		d = amount.Mul(value).Div(decimal.NewFromInt(100))
	case models.DiscountFixed:
		d = value
	default:
		return decimal.Zero
	}
	if d.GreaterThan(amount) {
		d = amount
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
