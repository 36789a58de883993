package payement

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
)

const maxWebhookBytes = int64(65536)

// Settler règle la commande liée à une transaction Stripe.
type Settler interface {
	SettleTransaction(ctx context.Context, transactionID string) error
}

type WebhookHandler struct {
	orders Settler
	secret string
	logger *zap.Logger
}

func NewWebhookHandler(orders Settler, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{orders: orders, secret: secret, logger: logger}
}

// Stripe vérifie la signature puis règle la commande pour
// checkout.session.completed et payment_intent.succeeded.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	if h.secret == "" {
		handlers.Detail(c, http.StatusServiceUnavailable, "Webhook is not configured.")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("❌ Lecture payload échouée", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body."})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("❌ Signature Stripe invalide", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature."})
		return
	}
	h.logger.Info("📥 Événement Stripe reçu", zap.String("type", string(event.Type)), zap.String("id", event.ID))

	txID, err := transactionID(event)
	if err != nil {
		h.logger.Warn("❌ Objet Stripe illisible", zap.String("type", string(event.Type)), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload."})
		return
	}
	if txID == "" {
		h.logger.Debug("ℹ️ Événement ignoré", zap.String("type", string(event.Type)))
		c.Status(http.StatusOK)
		return
	}

	if err := h.orders.SettleTransaction(c.Request.Context(), txID); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.Status(http.StatusOK)
}

// transactionID renvoie l'identifiant à régler, vide pour les autres événements.
func transactionID(event stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return "", err
		}
		return s.ID, nil
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return "", err
		}
		return pi.ID, nil
	}
	return "", nil
}
