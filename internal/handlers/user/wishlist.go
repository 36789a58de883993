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

// WishlistStore est le stockage de la wishlist (repository.WishlistRepository).
type WishlistStore interface {
	List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.WishlistItem, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WishlistItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type WishlistHandler struct {
	wishlist WishlistStore
	pageSize int
	logger   *zap.Logger
}

func NewWishlistHandler(wishlist WishlistStore, pageSize int, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, pageSize: pageSize, logger: logger}
}

func (h *WishlistHandler) List(c *gin.Context) {
	page, ok := handlers.PageParam(c, h.pageSize)
	if !ok {
		return
	}
	items, total, err := h.wishlist.List(c.Request.Context(), middleware.Actor(c).UserID, page)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	handlers.WritePage(c, models.NewPageResult(items, total, page), page)
}

type wishlistRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

func (h *WishlistHandler) Add(c *gin.Context) {
	var req wishlistRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	item, err := h.wishlist.Add(c.Request.Context(), middleware.Actor(c).UserID, uuid.MustParse(req.ProductID))
	switch {
	case errors.Is(err, repository.ErrConflict):
		handlers.Detail(c, http.StatusBadRequest, "Product is already in the wishlist.")
	case errors.Is(err, repository.ErrProductNotFound):
		handlers.Field(c, "product_id", "Product not found.")
	case err != nil:
		handlers.Internal(c, h.logger, err)
	default:
		c.JSON(http.StatusCreated, item)
	}
}

func (h *WishlistHandler) Get(c *gin.Context) {
	item, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *WishlistHandler) Delete(c *gin.Context) {
	item, ok := h.owned(c)
	if !ok {
		return
	}
	err := h.wishlist.Delete(c.Request.Context(), item.ID)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// owned charge l'entrée et vérifie qu'elle appartient à l'utilisateur.
func (h *WishlistHandler) owned(c *gin.Context) (*models.WishlistItem, bool) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}
	item, err := h.wishlist.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return nil, false
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return nil, false
	}
	if item.UserID != middleware.Actor(c).UserID {
		handlers.Forbidden(c)
		return nil, false
	}
	return item, true
}
