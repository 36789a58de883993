package user

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
)

// OrderService couvre les opérations de commande exposées côté acheteur.
type OrderService interface {
	Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor models.Actor, page models.Page, withItems bool) (models.PageResult[models.Order], error)
	Checkout(ctx context.Context, actor models.Actor, in order.CheckoutInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, target models.OrderStatus) (*models.Order, error)
}

// InvoiceRenderer produit la facture PDF (utils.InvoiceRenderer).
type InvoiceRenderer interface {
	Render(ctx context.Context, o models.Order, buyer models.User) ([]byte, error)
}

type BuyerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type OrderHandler struct {
	orders   OrderService
	invoices InvoiceRenderer
	buyers   BuyerLookup
	// limite les rendus chromedp simultanés
	renders  *semaphore.Weighted
	pageSize int
	logger   *zap.Logger
}

// NewOrderHandler crée le handler. invoices peut être nil : la facture
// renvoie alors 404.
func NewOrderHandler(orders OrderService, invoices InvoiceRenderer, buyers BuyerLookup, renders int64, pageSize int, logger *zap.Logger) *OrderHandler {
	if renders < 1 {
		renders = 1
	}
	return &OrderHandler{
		orders:   orders,
		invoices: invoices,
		buyers:   buyers,
		renders:  semaphore.NewWeighted(renders),
		pageSize: pageSize,
		logger:   logger,
	}
}

// List renvoie les commandes avec leurs lignes, plus récentes d'abord.
func (h *OrderHandler) List(c *gin.Context) {
	h.list(c, true)
}

// History renvoie les commandes sans leurs lignes.
func (h *OrderHandler) History(c *gin.Context) {
	h.list(c, false)
}

func (h *OrderHandler) list(c *gin.Context, withItems bool) {
	page, ok := handlers.PageParam(c, h.pageSize)
	if !ok {
		return
	}
	res, err := h.orders.List(c.Request.Context(), middleware.Actor(c), page, withItems)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	handlers.WritePage(c, res, page)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	models.ShippingAddress
}

// Checkout transforme le panier en commande pending.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	o, err := h.orders.Checkout(c.Request.Context(), middleware.Actor(c), order.CheckoutInput{
		PaymentMethod: req.PaymentMethod,
		Address:       req.ShippingAddress,
	})
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// Invoice renvoie la facture PDF de la commande.
func (h *OrderHandler) Invoice(c *gin.Context) {
	if h.invoices == nil {
		handlers.NotFound(c)
		return
	}
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	o, err := h.orders.Get(ctx, middleware.Actor(c), id)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	buyer, err := h.buyers.FindByID(ctx, o.UserID)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	if err := h.renders.Acquire(ctx, 1); err != nil {
		handlers.Detail(c, http.StatusServiceUnavailable, "Invoice rendering is busy, try again later.")
		return
	}
	pdf, err := h.invoices.Render(ctx, *o, *buyer)
	h.renders.Release(1)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, o.Reference()))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=shipped delivered"`
}

// UpdateStatus applique une transition d'expédition (admin).
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), middleware.Actor(c), id, models.OrderStatus(req.Status))
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
