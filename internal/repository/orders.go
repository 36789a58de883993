package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const orderColumns = `id, user_id, payment_method, status,
	address_line_1, address_line_2, city, state_province_region,
	postal_zip_code, country_region, telephone_number,
	transaction_id, amount, discount, is_paid, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.PaymentMethod, &o.Status,
		&o.AddressLine1, &o.AddressLine2, &o.City, &o.StateProvinceRegion,
		&o.PostalZipCode, &o.CountryRegion, &o.TelephoneNumber,
		&o.TransactionID, &o.Amount, &o.Discount, &o.IsPaid, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

type checkoutLine struct {
	productID uuid.UUID
	title     string
	price     decimal.Decimal
	quantity  int
	stock     int
}

// Checkout verrouille le panier (FOR UPDATE) : deux checkouts simultanés du
// même acheteur sont sérialisés et le second voit la commande pending du
// premier. L'index unique partiel orders_one_pending_per_user couvre le reste.
func (r *OrderRepository) Checkout(ctx context.Context, in order.CheckoutInput) (*models.Order, error) {
	var created *models.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var cartID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, in.UserID).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrEmptyCart
		}
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}

		var pending bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND status = 'pending')`, in.UserID,
		).Scan(&pending); err != nil {
			return errors.Wrap(err, "check pending")
		}
		if pending {
			return order.ErrPendingOrder
		}

		rows, err := tx.Query(ctx, `
			SELECT p.id, p.title, p.price, ci.quantity, p.quantity
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id = $1
			ORDER BY ci.created_at`, cartID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (checkoutLine, error) {
			var l checkoutLine
			err := row.Scan(&l.productID, &l.title, &l.price, &l.quantity, &l.stock)
			return l, err
		})
		if err != nil {
			return errors.Wrap(err, "scan cart")
		}
		if len(lines) == 0 {
			return order.ErrEmptyCart
		}

		amount := decimal.Zero
		for _, l := range lines {
			if l.quantity > l.stock {
				return order.OutOfStock(l.title)
			}
			amount = amount.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
		}

		a := in.Address
		created, err = scanOrder(tx.QueryRow(ctx, `
			INSERT INTO orders (
				user_id, payment_method, address_line_1, address_line_2, city,
				state_province_region, postal_zip_code, country_region, telephone_number, amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+orderColumns,
			in.UserID, in.PaymentMethod, a.AddressLine1, a.AddressLine2, a.City,
			a.StateProvinceRegion, a.PostalZipCode, a.CountryRegion, a.TelephoneNumber, amount,
		))
		if pgCode(err) == uniqueViolation {
			return order.ErrPendingOrder
		}
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, l := range lines {
			batch.Queue(`
				INSERT INTO order_items (order_id, product_id, title, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				created.ID, l.productID, l.title, l.quantity, l.price,
			)
		}
		results := tx.SendBatch(ctx, batch)
		created.Items = make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			item := models.OrderItem{ProductID: l.productID, Title: l.title, Quantity: l.quantity, Price: l.price}
			if err := results.QueryRow().Scan(&item.ID); err != nil {
				_ = results.Close()
				return errors.Wrap(err, "insert order item")
			}
			created.Items = append(created.Items, item)
		}
		return errors.Wrap(results.Close(), "close batch")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page models.Page, withItems bool) ([]models.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return models.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, 0, err
	}

	if withItems && len(orders) > 0 {
		ids := make([]uuid.UUID, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
		}
		items, err := r.items(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}
	}
	return orders, total, nil
}

func (r *OrderRepository) items(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, id, product_id, title, quantity, price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY title`, idStrings(orderIDs))
	if err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID uuid.UUID
		var it models.OrderItem
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.Title, &it.Quantity, &it.Price); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, errors.Wrap(rows.Err(), "iterate order items")
}

func (r *OrderRepository) FindByTransaction(ctx context.Context, transactionID string) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE transaction_id = $1 AND transaction_id <> ''`, transactionID))
}

// SetTransaction n'écrit que sur une commande encore pending.
func (r *OrderRepository) SetTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET transaction_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, transactionID)
	if err != nil {
		return errors.Wrap(err, "set transaction")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrConcurrentUpdate
	}
	return nil
}

func (r *OrderRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return errors.Wrap(err, "transition order")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrConcurrentUpdate
	}
	return nil
}

// MarkPaid règle la commande : statut paid, stock décrémenté (jamais sous
// zéro) et panier vidé, dans une seule transaction.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uuid.UUID) ([]string, error) {
	var oversold []string
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE orders SET status = 'paid', is_paid = TRUE, updated_at = now()
			WHERE id = $1 AND status = 'pending'
			RETURNING user_id`, id).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrConcurrentUpdate
		}
		if err != nil {
			return errors.Wrap(err, "mark paid")
		}

		rows, err := tx.Query(ctx, `
			SELECT oi.title FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1 AND p.quantity < oi.quantity`, id)
		if err != nil {
			return errors.Wrap(err, "check stock")
		}
		oversold, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return errors.Wrap(err, "scan oversold")
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products p
			SET quantity = GREATEST(p.quantity - oi.quantity, 0), updated_at = now()
			FROM order_items oi
			WHERE oi.order_id = $1 AND oi.product_id = p.id`, id); err != nil {
			return errors.Wrap(err, "decrement stock")
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM cart_items
			WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`, userID)
		return errors.Wrap(err, "clear cart")
	})
	if err != nil {
		return nil, err
	}
	return oversold, nil
}
