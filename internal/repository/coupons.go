package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/coupon"
	"marketplace_back_end/internal/models"
	"marketplace_back_end/internal/order"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const couponColumns = `id, code, discount_type, discount_value, valid_from, valid_until,
	max_uses, uses, active, created_by, created_at, updated_at`

type CouponRepository struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.ValidFrom, &c.ValidUntil,
		&c.MaxUses, &c.Uses, &c.Active, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan coupon")
	}
	return &c, nil
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (r *CouponRepository) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
}

func (r *CouponRepository) HasRedeemed(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)`,
		couponID, userID,
	).Scan(&used)
	return used, errors.Wrap(err, "check redemption")
}

// Redeem applique la réduction. Chaque écriture est gardée pour que deux
// utilisations concurrentes ne dépassent ni max_uses ni une réduction par commande.
func (r *CouponRepository) Redeem(ctx context.Context, red coupon.Redemption) (*models.Order, error) {
	var updated *models.Order
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO coupon_redemptions (coupon_id, user_id, order_id, discount)
			VALUES ($1, $2, $3, $4)`,
			red.CouponID, red.UserID, red.OrderID, red.Discount)
		if pgCode(err) == uniqueViolation {
			return coupon.ErrAlreadyUsed
		}
		if err != nil {
			return errors.Wrap(err, "insert redemption")
		}

		tag, err := tx.Exec(ctx, `
			UPDATE coupons SET uses = uses + 1, updated_at = now()
			WHERE id = $1 AND (max_uses = 0 OR uses < max_uses)`, red.CouponID)
		if err != nil {
			return errors.Wrap(err, "increment uses")
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimit
		}

		updated, err = scanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET discount = $2, amount = amount - $2, updated_at = now()
			WHERE id = $1 AND status = 'pending' AND discount = 0
			RETURNING `+orderColumns,
			red.OrderID, red.Discount))
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrNotFound) {
			return err
		}

		var status models.OrderStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, red.OrderID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return coupon.ErrOrderNotFound
			}
			return errors.Wrap(err, "reload order")
		}
		if status != models.OrderPending {
			return coupon.ErrOrderNotOpen
		}
		return coupon.ErrAlreadyApplied
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *CouponRepository) List(ctx context.Context, page models.Page) ([]models.Coupon, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count coupons")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list coupons")
	}
	coupons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Coupon, error) {
		c, err := scanCoupon(row)
		if err != nil {
			return models.Coupon{}, err
		}
		return *c, nil
	})
	return coupons, total, err
}

func (r *CouponRepository) Create(ctx context.Context, c *models.Coupon) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, valid_from, valid_until, max_uses, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uses, created_at, updated_at`,
		c.Code, c.DiscountType, c.DiscountValue, c.ValidFrom, c.ValidUntil, c.MaxUses, c.Active, c.CreatedBy,
	).Scan(&c.ID, &c.Uses, &c.CreatedAt, &c.UpdatedAt)
	if pgCode(err) == uniqueViolation {
		return coupon.ErrDuplicateCode
	}
	return errors.Wrap(err, "insert coupon")
}

func (r *CouponRepository) Update(ctx context.Context, c *models.Coupon) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE coupons SET
			code = $2, discount_type = $3, discount_value = $4, valid_from = $5,
			valid_until = $6, max_uses = $7, active = $8, updated_at = now()
		WHERE id = $1
		RETURNING uses, updated_at`,
		c.ID, c.Code, c.DiscountType, c.DiscountValue, c.ValidFrom, c.ValidUntil, c.MaxUses, c.Active,
	).Scan(&c.Uses, &c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return coupon.ErrNotFound
	case pgCode(err) == uniqueViolation:
		return coupon.ErrDuplicateCode
	}
	return errors.Wrap(err, "update coupon")
}

func (r *CouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// ImportCodes insère un lot de codes avec les règles de tmpl. Les codes déjà
// présents sont ignorés ; renvoie le nombre de lignes insérées.
func (r *CouponRepository) ImportCodes(ctx context.Context, codes []string, tmpl models.Coupon) (int64, error) {
	batch := &pgx.Batch{}
	for _, code := range codes {
		batch.Queue(`
			INSERT INTO coupons (code, discount_type, discount_value, valid_from, valid_until, max_uses, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO NOTHING`,
			code, tmpl.DiscountType, tmpl.DiscountValue, tmpl.ValidFrom, tmpl.ValidUntil, tmpl.MaxUses, tmpl.Active)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range codes {
		tag, err := results.Exec()
		if err != nil {
			return inserted, errors.Wrap(err, "import coupon")
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
