package product

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/handlers"
	"marketplace_back_end/internal/middleware"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/repository"
	"marketplace_back_end/internal/services"
)

// Lister liste les produits (services.Catalog).
type Lister interface {
	Products(ctx context.Context, f models.ProductFilter, page models.Page) (models.PageResult[models.Product], error)
}

type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, sellerID uuid.UUID, in models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	SetProductImage(ctx context.Context, id uuid.UUID, url string) error
}

// Indexer tient l'index de recherche à jour (services.ProductIndex).
type Indexer interface {
	IndexAsync(ctx context.Context, p models.Product)
	Delete(ctx context.Context, id uuid.UUID)
}

type ImageUploader interface {
	Upload(ctx context.Context, productID uuid.UUID, file *multipart.FileHeader) (string, error)
}

var _ ImageUploader = (*services.ImageStore)(nil)

type ProductHandler struct {
	catalog  Lister
	store    ProductStore
	index    Indexer
	images   ImageUploader
	pageSize int
	logger   *zap.Logger
}

func NewProductHandler(catalog Lister, store ProductStore, index Indexer, images ImageUploader, pageSize int, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:  catalog,
		store:    store,
		index:    index,
		images:   images,
		pageSize: pageSize,
		logger:   logger,
	}
}

// List pagine les produits ; filtres ?category= et ?search=.
func (h *ProductHandler) List(c *gin.Context) {
	page, ok := handlers.PageParam(c, h.pageSize)
	if !ok {
		return
	}
	filter := models.ProductFilter{Search: strings.TrimSpace(c.Query("search"))}
	if raw := c.Query("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handlers.Field(c, "category", "Must be a valid UUID.")
			return
		}
		filter.CategoryID = &id
	}

	res, err := h.catalog.Products(c.Request.Context(), filter, page)
	if err != nil {
		handlers.Internal(c, h.logger, err)
		return
	}
	handlers.WritePage(c, res, page)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create publie un produit au nom du vendeur connecté.
func (h *ProductHandler) Create(c *gin.Context) {
	var in models.ProductInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	switch {
	case in.Title == nil || strings.TrimSpace(*in.Title) == "":
		handlers.Field(c, "title", "This field is required.")
		return
	case in.Price == nil:
		handlers.Field(c, "price", "This field is required.")
		return
	}
	if !h.validInput(c, in) {
		return
	}

	p, err := h.store.CreateProduct(c.Request.Context(), middleware.Actor(c).UserID, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.index.IndexAsync(c.Request.Context(), *p)
	h.logger.Info("🆕 Produit créé", zap.String("product_id", p.ID.String()), zap.String("seller_id", p.SellerID.String()))
	c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}
	var in models.ProductInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		handlers.Field(c, "title", "This field may not be blank.")
		return
	}
	if !h.validInput(c, in) {
		return
	}

	updated, err := h.store.UpdateProduct(c.Request.Context(), p.ID, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.index.IndexAsync(c.Request.Context(), *updated)
	c.JSON(http.StatusOK, updated)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.store.DeleteProduct(c.Request.Context(), p.ID); err != nil {
		h.writeError(c, err)
		return
	}
	h.index.Delete(c.Request.Context(), p.ID)
	h.logger.Info("🗑️ Produit supprimé", zap.String("product_id", p.ID.String()))
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) validInput(c *gin.Context, in models.ProductInput) bool {
	switch {
	case in.Price != nil && !in.Price.IsPositive():
		handlers.Field(c, "price", "Ensure this value is greater than 0.")
		return false
	case in.Quantity != nil && *in.Quantity < 0:
		handlers.Field(c, "quantity", "Ensure this value is greater than or equal to 0.")
		return false
	}
	return true
}

// owned charge le produit de :id ; seuls son vendeur et un admin passent.
func (h *ProductHandler) owned(c *gin.Context) (*models.Product, bool) {
	id, ok := handlers.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	actor := middleware.Actor(c)
	if p.SellerID != actor.UserID && !actor.IsAdmin() {
		handlers.Forbidden(c)
		return nil, false
	}
	return p, true
}

func (h *ProductHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		handlers.NotFound(c)
	case errors.Is(err, repository.ErrNotFound):
		// Clé étrangère : catégorie, couleur ou taille inconnue.
		handlers.Detail(c, http.StatusBadRequest, "Invalid category, color or size.")
	case errors.Is(err, repository.ErrConflict):
		handlers.Detail(c, http.StatusBadRequest, "Product is referenced by existing orders.")
	default:
		handlers.Internal(c, h.logger, err)
	}
}
