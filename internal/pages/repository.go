// Package pages manages the gated page rules consumed by the access
// decision function.
package pages

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

// Listing is a page row joined with the names of its allowed roles.
type Listing struct {
	rbac.Page
	RoleNames []string
}

// Repository provides PostgreSQL backed persistence for pages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all pages with their allowed role names, ordered by path.
func (r *Repository) List(ctx context.Context) ([]Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.path, p.description, p.active, p.created_at, p.updated_at,
		       COALESCE(array_agg(ro.name ORDER BY ro.name) FILTER (WHERE ro.id IS NOT NULL), '{}')
		FROM pages p
		LEFT JOIN page_roles pr ON pr.page_id = p.id
		LEFT JOIN roles ro ON ro.id = pr.role_id
		GROUP BY p.id
		ORDER BY p.path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Name, &l.Path, &l.Description, &l.Active, &l.CreatedAt, &l.UpdatedAt, &l.RoleNames); err != nil {
			return nil, err
		}
		pages = append(pages, l)
	}
	return pages, rows.Err()
}

// Get fetches a page by id.
func (r *Repository) Get(ctx context.Context, id int64) (rbac.Page, error) {
	var p rbac.Page
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, path, description, active, created_at, updated_at
		FROM pages WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Path, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Page{}, rbac.ErrNotFound
		}
		return rbac.Page{}, err
	}
	return p, nil
}

// Create inserts a new page rule.
func (r *Repository) Create(ctx context.Context, name, path, description string, active bool) (rbac.Page, error) {
	var p rbac.Page
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pages (name, path, description, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, path, description, active, created_at, updated_at`,
		name, path, description, active).Scan(
		&p.ID, &p.Name, &p.Path, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return rbac.Page{}, mapUniqueViolation(err)
	}
	return p, nil
}

// Update modifies an existing page rule.
func (r *Repository) Update(ctx context.Context, id int64, name, path, description string, active bool) (rbac.Page, error) {
	var p rbac.Page
	err := r.pool.QueryRow(ctx, `
		UPDATE pages SET name = $2, path = $3, description = $4, active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, path, description, active, created_at, updated_at`,
		id, name, path, description, active).Scan(
		&p.ID, &p.Name, &p.Path, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Page{}, rbac.ErrNotFound
		}
		return rbac.Page{}, mapUniqueViolation(err)
	}
	return p, nil
}

// Delete removes a page and its role rows in one transaction. Removing the
// page ungates the path: the decision function falls back to default-allow.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM page_roles WHERE page_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
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
