package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
)

// CartStore est le stockage du panier (repository.CartRepository).
type CartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type CartHandler struct {
	carts  CartStore
	logger *zap.Logger
}

func NewCartHandler(carts CartStore, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type cartResponse struct {
	*models.Cart
	Total string `json:"total"`
	Count int    `json:"count"`
}

// Get renvoie le panier (créé à la volée) avec son total.
func (h *CartHandler) Get(c *gin.Context) {
	cart, err := h.carts.Get(c.Request.Context(), middleware.Actor(c).UserID)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	c.JSON(http.StatusOK, cartResponse{Cart: cart, Total: cart.Total().StringFixed(2), Count: len(cart.Items)})
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AddItem ajoute un produit ou incrémente sa quantité.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	item, err := h.carts.AddItem(c.Request.Context(), middleware.Actor(c).UserID, uuid.MustParse(req.ProductID), req.Quantity)
	if h.itemError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	item, err := h.carts.UpdateItem(c.Request.Context(), middleware.Actor(c).UserID, itemID, req.Quantity)
	if h.itemError(c, err) {
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	err := h.carts.RemoveItem(c.Request.Context(), middleware.Actor(c).UserID, itemID)
	if h.itemError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), middleware.Actor(c).UserID); err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// itemError écrit la réponse d'erreur éventuelle et indique si elle a été écrite.
func (h *CartHandler) itemError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var stock *repository.StockError
	switch {
	case errors.As(err, &stock):
		handlers.Detail(c, http.StatusBadRequest, stock.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		handlers.Field(c, "product_id", "Product not found.")
	case errors.Is(err, repository.ErrNotFound):
		handlers.NotFound(c)
	default:
		handlers.Internal(c, h.logger, err)
	}
	return true
}
