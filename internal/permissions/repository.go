// Package permissions manages the permission catalog backing role grants.
package permissions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/platform/db"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for permissions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all permissions ordered by name.
func (r *Repository) List(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Get fetches a permission by id.
func (r *Repository) Get(ctx context.Context, id int64) (rbac.Permission, error) {
	var p rbac.Permission
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM permissions WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Permission{}, rbac.ErrNotFound
		}
		return rbac.Permission{}, err
	}
	return p, nil
}

// Create inserts a new permission.
func (r *Repository) Create(ctx context.Context, name, description string) (rbac.Permission, error) {
	var p rbac.Permission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`,
		name, description).Scan(
		&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return rbac.Permission{}, httpx.ErrDuplicate
		}
		return rbac.Permission{}, err
	}
	return p, nil
}

// Delete removes a permission and any role grants pointing at it in one
// transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return rbac.ErrNotFound
		}
		return nil
	})
}
