package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/platform/db"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all users with their role names, ordered by last name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.name, u.last_name, u.active, u.created_at, u.updated_at,
		       COALESCE(array_agg(ro.name ORDER BY ro.name) FILTER (WHERE ro.id IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles ro ON ro.id = ur.role_id
		GROUP BY u.id
		ORDER BY u.last_name, u.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.LastName, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.RoleNames); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Get fetches a user by id, without role names.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, last_name, active, created_at, updated_at
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.LastName, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// Create inserts a user with an already hashed password.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, last_name, password_hash, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Email, u.Name, u.LastName, u.PasswordHash, u.Active).Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	u.PasswordHash = ""
	return u, nil
}

// Update modifies profile fields; the password is handled separately.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET email = $2, name = $3, last_name = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.LastName, u.Active).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, mapUniqueViolation(err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a user and its role rows in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return httpx.ErrDuplicate
	}
	return err
}
