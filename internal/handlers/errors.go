package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"marketplace_back_end/internal/order"
	"marketplace_back_end/internal/payment"
)

// OrderError traduit les erreurs du service de commandes en réponse HTTP.
func OrderError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		stateErr    *order.StateError
		checkoutErr *order.CheckoutError
		gatewayErr  *payment.GatewayError
	)
	switch {
	case errors.Is(err, order.ErrNotFound):
		NotFound(c)
	case errors.Is(err, order.ErrForbidden):
		Forbidden(c)
	case errors.As(err, &stateErr):
		Detail(c, http.StatusBadRequest, stateErr.Message)
	case errors.As(err, &checkoutErr):
		Detail(c, http.StatusBadRequest, checkoutErr.Message)
	case errors.As(err, &gatewayErr):
		logger.Warn("💳 Refus du prestataire de paiement", zap.String("code", gatewayErr.Code), zap.Error(gatewayErr.Err))
		c.JSON(http.StatusBadRequest, gin.H{"error": gatewayErr.Message})
	case errors.Is(err, order.ErrConcurrentUpdate):
		Detail(c, http.StatusConflict, "Order was modified concurrently, try again.")
	default:
		Internal(c, logger, err)
	}
}
