package payement

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace_back_end/internal/coupon"
	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
)

// CouponApplier applique un code à une commande (coupon.Validator).
type CouponApplier interface {
	Apply(ctx context.Context, in coupon.ApplyInput) (*coupon.ApplyResult, error)
}

// CouponManager gère les coupons (coupon.Manager).
type CouponManager interface {
	List(ctx context.Context, page models.Page) (models.PageResult[models.Coupon], error)
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, actor models.Actor, c models.Coupon) (*models.Coupon, error)
	Update(ctx context.Context, actor models.Actor, id uuid.UUID, patch models.CouponPatch) (*models.Coupon, error)
	Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

type CouponHandler struct {
	validator CouponApplier
	manager   CouponManager
	pageSize  int
	logger    *zap.Logger
}

func NewCouponHandler(validator CouponApplier, manager CouponManager, pageSize int, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{validator: validator, manager: manager, pageSize: pageSize, logger: logger}
}

type applyRequest struct {
	CouponCode string `json:"coupon_code" binding:"required"`
	OrderID    string `json:"order_id" binding:"required"`
}

// Apply applique un coupon à une commande pending de l'acheteur.
func (h *CouponHandler) Apply(c *gin.Context) {
	var req applyRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		handlers.NotFound(c)
		return
	}

	res, err := h.validator.Apply(c.Request.Context(), coupon.ApplyInput{
		Code:    req.CouponCode,
		OrderID: orderID,
		UserID:  middleware.Actor(c).UserID,
	})
	if errors.Is(err, coupon.ErrNotFound) {
		handlers.Field(c, "coupon_code", "Coupon does not exist.")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detail":   "Coupon applied successfully.",
		"discount": res.Discount.StringFixed(2),
		"order":    res.Order,
	})
}

func (h *CouponHandler) List(c *gin.Context) {
	page, ok := handlers.PageParam(c, h.pageSize)
	if !ok {
		return
	}
	res, err := h.manager.List(c.Request.Context(), page)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	handlers.WritePage(c, res, page)
}

type couponRequest struct {
	Code          string           `json:"code" binding:"required,max=50"`
	DiscountType  string           `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue *decimal.Decimal `json:"discount_value" binding:"required"`
	ValidFrom     *time.Time       `json:"valid_from" binding:"required"`
	ValidUntil    *time.Time       `json:"valid_until" binding:"required"`
	MaxUses       int              `json:"max_uses" binding:"omitempty,min=0"`
	Active        *bool            `json:"active"`
}

func (h *CouponHandler) Create(c *gin.Context) {
	var req couponRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	created, err := h.manager.Create(c.Request.Context(), middleware.Actor(c), models.Coupon{
		Code:          req.Code,
		DiscountType:  models.DiscountType(req.DiscountType),
		DiscountValue: *req.DiscountValue,
		ValidFrom:     *req.ValidFrom,
		ValidUntil:    *req.ValidUntil,
		MaxUses:       req.MaxUses,
		Active:        active,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CouponHandler) Get(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	found, err := h.manager.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *CouponHandler) Update(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	var patch models.CouponPatch
	if !handlers.BindJSON(c, &patch) {
		return
	}

	updated, err := h.manager.Update(c.Request.Context(), middleware.Actor(c), id, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CouponHandler) Delete(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.manager.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CouponHandler) writeError(c *gin.Context, err error) {
	var (
		ruleErr  *coupon.RuleError
		fieldErr *coupon.FieldError
	)
	switch {
	case errors.As(err, &ruleErr):
		handlers.Field(c, "coupon_code", ruleErr.Message)
	case errors.As(err, &fieldErr):
		handlers.Field(c, fieldErr.Field, fieldErr.Message)
	case errors.Is(err, coupon.ErrDuplicateCode):
		handlers.Field(c, "code", "Coupon with this code already exists.")
	case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrOrderNotFound):
		handlers.NotFound(c)
	case errors.Is(err, coupon.ErrForbidden):
		handlers.Forbidden(c)
	default:
		handlers.Internal(c, h.logger, err)
	}
}
