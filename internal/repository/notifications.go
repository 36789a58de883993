package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/models"
)

const notificationColumns = `id, user_id, type, message, is_read, created_at`

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan notification")
	}
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, message)
		VALUES ($1, $2, $3)
		RETURNING id, is_read, created_at`,
		n.UserID, n.Type, n.Message,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return errors.Wrap(err, "insert notification")
}

func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, page models.Page) ([]models.Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count notifications")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list notifications")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Notification, error) {
		n, err := scanNotification(row)
		if err != nil {
			return models.Notification{}, err
		}
		return *n, nil
	})
	return items, total, err
}

func (r *NotificationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (r *NotificationRepository) SetRead(ctx context.Context, id uuid.UUID, read bool) (*models.Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = $2 WHERE id = $1
		RETURNING `+notificationColumns, id, read))
}
