package roles

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

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all roles ordered by name.
func (r *Repository) List(ctx context.Context) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		var role rbac.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches a role by id.
func (r *Repository) Get(ctx context.Context, id int64) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM roles WHERE id = $1`, id).Scan(
		&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, rbac.ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// Create inserts a new role.
func (r *Repository) Create(ctx context.Context, name, description string, active bool) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, active)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, active, created_at, updated_at`,
		name, description, active).Scan(
		&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return rbac.Role{}, mapUniqueViolation(err)
	}
	return role, nil
}

// Update modifies an existing role.
func (r *Repository) Update(ctx context.Context, id int64, name, description string, active bool) (rbac.Role, error) {
	var role rbac.Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, active, created_at, updated_at`,
		id, name, description, active).Scan(
		&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, rbac.ErrNotFound
		}
		return rbac.Role{}, mapUniqueViolation(err)
	}
	return role, nil
}

// Delete removes a role and its join rows in one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM role_permissions WHERE role_id = $1`,
			`DELETE FROM user_roles WHERE role_id = $1`,
			`DELETE FROM page_roles WHERE role_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return rbac.ErrNotFound
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
