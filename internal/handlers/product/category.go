// Package product expose le catalogue : catégories, produits et images.
package product

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
)

type CategoryStore interface {
	ListCategories(ctx context.Context, search string) ([]models.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

type CategoryHandler struct {
	store  CategoryStore
	logger *zap.Logger
}

func NewCategoryHandler(store CategoryStore, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{store: store, logger: logger}
}

// List renvoie l'arbre des catégories, filtré par ?search=.
func (h *CategoryHandler) List(c *gin.Context) {
	items, err := h.store.ListCategories(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	if items == nil {
		items = []models.Category{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	cat, err := h.store.GetCategory(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		handlers.NotFound(c)
		return
	}
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}
