package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/models"
)

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ensureCart renvoie le panier de l'utilisateur en le créant au besoin.
func ensureCart(ctx context.Context, q querier, userID uuid.UUID) (models.Cart, error) {
	cart := models.Cart{UserID: userID}
	err := q.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		RETURNING id, created_at`, userID,
	).Scan(&cart.ID, &cart.CreatedAt)
	return cart, errors.Wrap(err, "ensure cart")
}

const cartItemSelect = `
	SELECT ci.id, ci.product_id, p.title, p.price, ci.quantity, p.quantity
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

func scanCartItem(row pgx.Row) (models.CartItem, error) {
	var it models.CartItem
	err := row.Scan(&it.ID, &it.ProductID, &it.Title, &it.Price, &it.Quantity, &it.Stock)
	return it, err
}

func (r *CartRepository) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := ensureCart(ctx, r.pool, userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, cartItemSelect+` WHERE ci.cart_id = $1 ORDER BY ci.created_at`, cart.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart items")
	}
	cart.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CartItem, error) {
		return scanCartItem(row)
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan cart items")
	}
	return &cart, nil
}

// AddItem ajoute un produit ou incrémente sa quantité, sans dépasser le stock.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cart, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		item.ProductID = productID
		err = tx.QueryRow(ctx, `SELECT title, price, quantity FROM products WHERE id = $1`, productID).
			Scan(&item.Title, &item.Price, &item.Stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return errors.Wrap(err, "load product")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			RETURNING id, quantity`,
			cart.ID, productID, quantity,
		).Scan(&item.ID, &item.Quantity)
		if err != nil {
			return errors.Wrap(err, "upsert cart item")
		}
		if item.Quantity > item.Stock {
			return &StockError{Title: item.Title}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem fixe la quantité d'une ligne du panier de l'utilisateur.
func (r *CartRepository) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartItem, error) {
	item, err := scanCartItem(r.pool.QueryRow(ctx, cartItemSelect+`
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2`, itemID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart item")
	}
	if quantity > item.Stock {
		return nil, &StockError{Title: item.Title}
	}

	if _, err := r.pool.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, itemID, quantity); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	item.Quantity = quantity
	return &item, nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.id = $1 AND c.id = ci.cart_id AND c.user_id = $2`, itemID, userID)
	if err != nil {
		return errors.Wrap(err, "remove cart item")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`, userID)
	return errors.Wrap(err, "clear cart")
}
