package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/models"
)

type WishlistRepository struct {
	pool    *pgxpool.Pool
	catalog *CatalogRepository
}

func NewWishlistRepository(pool *pgxpool.Pool, catalog *CatalogRepository) *WishlistRepository {
	return &WishlistRepository{pool: pool, catalog: catalog}
}

type wishlistRow struct {
	id, userID, productID uuid.UUID
	item                  models.WishlistItem
}

func (r *WishlistRepository) List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.WishlistItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM wishlist_items WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count wishlist")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, product_id, created_at FROM wishlist_items
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list wishlist")
	}
	entries, err := pgx.CollectRows(rows, scanWishlistRow)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan wishlist")
	}
	items, err := r.withProducts(ctx, entries)
	return items, total, err
}

func (r *WishlistRepository) Get(ctx context.Context, id uuid.UUID) (*models.WishlistItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, product_id, created_at FROM wishlist_items WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "get wishlist item")
	}
	entries, err := pgx.CollectRows(rows, scanWishlistRow)
	if err != nil {
		return nil, errors.Wrap(err, "scan wishlist item")
	}
	items, err := r.withProducts(ctx, entries)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// Add ajoute un produit à la liste. ErrConflict si déjà présent.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID uuid.UUID) (*models.WishlistItem, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)
		RETURNING id`, userID, productID).Scan(&id)
	switch pgCode(err) {
	case uniqueViolation:
		return nil, ErrConflict
	case foreignKeyViolation:
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "add wishlist item")
	}
	return r.Get(ctx, id)
}

func (r *WishlistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wishlist_items WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete wishlist item")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWishlistRow(row pgx.CollectableRow) (wishlistRow, error) {
	var w wishlistRow
	err := row.Scan(&w.id, &w.userID, &w.productID, &w.item.CreatedAt)
	return w, err
}

func (r *WishlistRepository) withProducts(ctx context.Context, entries []wishlistRow) ([]models.WishlistItem, error) {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.productID
	}
	products, err := r.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]models.WishlistItem, 0, len(entries))
	for _, e := range entries {
		p, ok := byID[e.productID]
		if !ok {
			continue
		}
		item := e.item
		item.ID = e.id
		item.UserID = e.userID
		item.Product = p
		out = append(out, item)
	}
	return out, nil
}
