// Package payement expose le paiement des commandes, les coupons et le
// webhook Stripe.
package payement

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
)

// PaymentService couvre le cycle de paiement d'une commande (order.Service).
type PaymentService interface {
	Status(ctx context.Context, actor models.Actor, id uuid.UUID) (models.OrderStatus, error)
	InitiatePayment(ctx context.Context, actor models.Actor, id uuid.UUID) (string, error)
	ConfirmPayment(ctx context.Context, actor models.Actor, id uuid.UUID, clientSecret string) (string, error)
	CreatePaymentLink(ctx context.Context, actor models.Actor, id uuid.UUID) (string, error)
	MarkSuccess(ctx context.Context, actor models.Actor, id uuid.UUID) error
	Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

type PaymentHandler struct {
	orders PaymentService
	logger *zap.Logger
}

func NewPaymentHandler(orders PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, logger: logger}
}

// Les coordonnées de carte sont seulement contrôlées : elles ne sont ni
// stockées ni transmises, la confirmation se fait avec le client_secret.
type initiateRequest struct {
	CardNumber  string `json:"card_number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVC         string `json:"cvc"`
}

func (r initiateRequest) complete() bool {
	return r.CardNumber != "" && r.ExpiryMonth != "" && r.ExpiryYear != "" && r.CVC != ""
}

// Initiate crée le PaymentIntent et renvoie son client_secret.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req initiateRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	if !req.complete() {
		handlers.Detail(c, http.StatusBadRequest, "Card details are incomplete.")
		return
	}

	secret, err := h.orders.InitiatePayment(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_secret": secret})
}

type confirmRequest struct {
	ClientSecret string `json:"client_secret" binding:"required"`
}

// Confirm confirme le PaymentIntent ; la commande passe à paid.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req confirmRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	status, err := h.orders.ConfirmPayment(c.Request.Context(), middleware.Actor(c), id, req.ClientSecret)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// CreateLink renvoie l'URL d'une session Checkout hébergée.
func (h *PaymentHandler) CreateLink(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	url, err := h.orders.CreatePaymentLink(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Success est appelé au retour de la session Checkout.
func (h *PaymentHandler) Success(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.orders.MarkSuccess(c.Request.Context(), middleware.Actor(c), id); err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	handlers.Detail(c, http.StatusOK, "Order updated successfully.")
}

func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Cancel(c.Request.Context(), middleware.Actor(c), id); err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	handlers.Detail(c, http.StatusOK, "Order successfully canceled.")
}

func (h *PaymentHandler) Status(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	status, err := h.orders.Status(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		handlers.OrderError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
