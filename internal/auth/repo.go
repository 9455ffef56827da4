package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RoleNames(ctx context.Context, userID int64) ([]string, error)
	PermissionNames(ctx context.Context, userID int64) ([]string, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, last_name, password_hash, active, created_at, updated_at
		FROM users WHERE email = $1`, email).Scan(
		&user.ID, &user.Email, &user.Name, &user.LastName,
		&user.PasswordHash, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RoleNames returns the names of the active roles held by a user.
func (r *PGRepository) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return r.names(ctx, `
		SELECT r.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.active
		WHERE ur.user_id = $1 ORDER BY r.name`, userID)
}

// PermissionNames returns the deduplicated permission names granted through
// the user's active roles.
func (r *PGRepository) PermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return r.names(ctx, `
		SELECT DISTINCT p.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.active
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 ORDER BY p.name`, userID)
}

// UpdatePassword replaces the stored password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) names(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
