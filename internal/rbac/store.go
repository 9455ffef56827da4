package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRuleStore reads page rules from PostgreSQL. No in-process cache is kept:
// every decision re-reads the store so a rule edit takes effect on the next
// request.
type PGRuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore constructs a PGRuleStore.
func NewRuleStore(pool *pgxpool.Pool) *PGRuleStore {
	return &PGRuleStore{pool: pool}
}

// AllowedRoles implements RuleStore with an exact-path lookup over active pages.
func (s *PGRuleStore) AllowedRoles(ctx context.Context, path string) ([]string, bool, error) {
	const query = `
		SELECT COALESCE(array_agg(r.name) FILTER (WHERE r.id IS NOT NULL), '{}')
		FROM pages p
		LEFT JOIN page_roles pr ON pr.page_id = p.id
		LEFT JOIN roles r ON r.id = pr.role_id AND r.active
		WHERE p.path = $1 AND p.active
		GROUP BY p.id`
	var roles []string
	err := s.pool.QueryRow(ctx, query, path).Scan(&roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return roles, true, nil
}
