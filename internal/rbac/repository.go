package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/platform/db"
)

// PGAssignmentStore implements AssignmentStore on PostgreSQL. InTx delegates
// to the shared RepeatableRead transaction helper.
type PGAssignmentStore struct {
	pool *pgxpool.Pool
}

// NewAssignmentStore constructs a PGAssignmentStore.
func NewAssignmentStore(pool *pgxpool.Pool) *PGAssignmentStore {
	return &PGAssignmentStore{pool: pool}
}

// RoleRef resolves a role id to its id/name pair.
func (s *PGAssignmentStore) RoleRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(ctx, `SELECT id, name FROM roles WHERE id = $1`, id)
}

// UserRef resolves a user id to its id/name pair.
func (s *PGAssignmentStore) UserRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(ctx, `SELECT id, name FROM users WHERE id = $1`, id)
}

// PageRef resolves a page id to its id/name pair.
func (s *PGAssignmentStore) PageRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(ctx, `SELECT id, name FROM pages WHERE id = $1`, id)
}

func (s *PGAssignmentStore) ref(ctx context.Context, query string, id int64) (Ref, error) {
	var ref Ref
	if err := s.pool.QueryRow(ctx, query, id).Scan(&ref.ID, &ref.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ref{}, ErrNotFound
		}
		return Ref{}, err
	}
	return ref, nil
}

// RolePermissions lists the permissions currently attached to a role.
func (s *PGAssignmentStore) RolePermissions(ctx context.Context, roleID int64) ([]Ref, error) {
	return queryRefs(ctx, s.pool, `
		SELECT p.id, p.name FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 ORDER BY p.id`, roleID)
}

// UserRoles lists the roles currently held by a user.
func (s *PGAssignmentStore) UserRoles(ctx context.Context, userID int64) ([]Ref, error) {
	return queryRefs(ctx, s.pool, `
		SELECT r.id, r.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY r.id`, userID)
}

// PageRoles lists the roles currently allowed on a page.
func (s *PGAssignmentStore) PageRoles(ctx context.Context, pageID int64) ([]Ref, error) {
	return queryRefs(ctx, s.pool, `
		SELECT r.id, r.name FROM page_roles pr
		JOIN roles r ON r.id = pr.role_id
		WHERE pr.page_id = $1 ORDER BY r.id`, pageID)
}

// InTx runs fn inside a RepeatableRead transaction.
func (s *PGAssignmentStore) InTx(ctx context.Context, fn func(AssignmentTx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgAssignmentTx{tx: tx})
	})
}

var _ AssignmentStore = (*PGAssignmentStore)(nil)

type pgAssignmentTx struct {
	tx pgx.Tx
}

func (t *pgAssignmentTx) DeleteRolePermissions(ctx context.Context, roleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID)
	return err
}

func (t *pgAssignmentTx) InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])`, roleID, permissionIDs)
	return err
}

func (t *pgAssignmentTx) ExistingPermissions(ctx context.Context, ids []int64) ([]Ref, error) {
	return queryRefs(ctx, t.tx, `SELECT id, name FROM permissions WHERE id = ANY($1::bigint[]) ORDER BY id`, ids)
}

func (t *pgAssignmentTx) DeleteUserRoles(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return err
}

func (t *pgAssignmentTx) InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, unnest($2::bigint[])`, userID, roleIDs)
	return err
}

func (t *pgAssignmentTx) ExistingRoles(ctx context.Context, ids []int64) ([]Ref, error) {
	return queryRefs(ctx, t.tx, `SELECT id, name FROM roles WHERE id = ANY($1::bigint[]) ORDER BY id`, ids)
}

func (t *pgAssignmentTx) DeletePageRoles(ctx context.Context, pageID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM page_roles WHERE page_id = $1`, pageID)
	return err
}

func (t *pgAssignmentTx) InsertPageRoles(ctx context.Context, pageID int64, roleIDs []int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO page_roles (page_id, role_id)
		SELECT $1, unnest($2::bigint[])`, pageID, roleIDs)
	return err
}

var _ AssignmentTx = (*pgAssignmentTx)(nil)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryRefs(ctx context.Context, q querier, query string, args ...any) ([]Ref, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
