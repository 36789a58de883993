// Package services regroupe les services applicatifs branchés sur les
// clients externes (Elasticsearch, MinIO, Redis pub/sub).
package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
)

type ProductStore interface {
	ListProducts(ctx context.Context, f models.ProductFilter, page models.Page) ([]models.Product, int, error)
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type ProductSearcher interface {
	Enabled() bool
	Search(ctx context.Context, query string, categoryID *uuid.UUID, page models.Page) ([]uuid.UUID, int, error)
}

// Catalog liste les produits ; la recherche texte passe par Elasticsearch
// quand il est disponible, sinon par ILIKE en SQL.
type Catalog struct {
	store  ProductStore
	index  ProductSearcher
	logger *zap.Logger
}

func NewCatalog(store ProductStore, index ProductSearcher, logger *zap.Logger) *Catalog {
	return &Catalog{store: store, index: index, logger: logger}
}

func (c *Catalog) Products(ctx context.Context, f models.ProductFilter, page models.Page) (models.PageResult[models.Product], error) {
	if f.Search != "" && c.index.Enabled() {
		ids, total, err := c.index.Search(ctx, f.Search, f.CategoryID, page)
		if err == nil {
			products, err := c.store.ProductsByIDs(ctx, ids)
			if err != nil {
				return models.PageResult[models.Product]{}, err
			}
			return models.NewPageResult(products, total, page), nil
		}
		c.logger.Warn("⚠️ Recherche Elasticsearch indisponible, repli SQL", zap.Error(err))
	}

	products, total, err := c.store.ListProducts(ctx, f, page)
	if err != nil {
		return models.PageResult[models.Product]{}, err
	}
	return models.NewPageResult(products, total, page), nil
}
