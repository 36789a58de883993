package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_back_end/internal/models"
)

const userColumns = `id, email, phone_number, password_hash, first_name, last_name,
	gender, role, is_verified, is_active, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Gender, &u.Role, &u.IsVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone))
}

// FindByLogin cherche un utilisateur vérifié par e-mail ou téléphone.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_verified AND (email = $1 OR phone_number = $1)`, login))
}

// VerifiedConflicts indique si l'e-mail ou le téléphone appartient déjà à un compte vérifié.
func (r *UserRepository) VerifiedConflicts(ctx context.Context, email, phone string) (emailTaken, phoneTaken bool, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM users WHERE is_verified AND email = $1),
			EXISTS (SELECT 1 FROM users WHERE is_verified AND phone_number = $2)`,
		email, phone,
	).Scan(&emailTaken, &phoneTaken)
	return emailTaken, phoneTaken, errors.Wrap(err, "check conflicts")
}

// SaveUnverified remplace toute inscription non vérifiée portant le même
// e-mail ou téléphone, puis insère le nouvel utilisateur.
func (r *UserRepository) SaveUnverified(ctx context.Context, u *models.User) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM users
			WHERE NOT is_verified AND (email = $1 OR phone_number = $2)`,
			u.Email, u.PhoneNumber,
		); err != nil {
			return errors.Wrap(err, "delete stale signup")
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO users (email, phone_number, password_hash, first_name, last_name, gender, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, is_verified, is_active, created_at, updated_at`,
			u.Email, u.PhoneNumber, u.PasswordHash, u.FirstName, u.LastName, u.Gender, u.Role,
		).Scan(&u.ID, &u.IsVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if pgCode(err) == uniqueViolation {
			return ErrConflict
		}
		return errors.Wrap(err, "insert user")
	})
}

func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE users SET is_verified = TRUE, is_active = TRUE, updated_at = now() WHERE id = $1`, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			gender     = COALESCE($4, gender),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, upd.FirstName, upd.LastName, upd.Gender,
	))
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
