package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// memoryAssignmentStore emulates the transactional store: mutations run on a
// staged copy and only land when the transaction callback succeeds.
type memoryAssignmentStore struct {
	roles       map[int64]string
	users       map[int64]string
	pages       map[int64]string
	permissions map[int64]string

	rolePerms map[int64][]int64
	userRoles map[int64][]int64
	pageRoles map[int64][]int64

	inserts int
}

type memoryAssignmentTx struct {
	store *memoryAssignmentStore

	rolePerms map[int64][]int64
	userRoles map[int64][]int64
	pageRoles map[int64][]int64
}

func newMemoryAssignmentStore() *memoryAssignmentStore {
	return &memoryAssignmentStore{
		roles:       map[int64]string{1: "Operator", 2: "Support"},
		users:       map[int64]string{10: "Ana"},
		pages:       map[int64]string{20: "Users"},
		permissions: map[int64]string{100: "users.view", 101: "users.edit", 102: "roles.view"},
		rolePerms:   map[int64][]int64{},
		userRoles:   map[int64][]int64{},
		pageRoles:   map[int64][]int64{},
	}
}

func (s *memoryAssignmentStore) RoleRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(s.roles, id)
}

func (s *memoryAssignmentStore) UserRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(s.users, id)
}

func (s *memoryAssignmentStore) PageRef(ctx context.Context, id int64) (Ref, error) {
	return s.ref(s.pages, id)
}

func (s *memoryAssignmentStore) ref(m map[int64]string, id int64) (Ref, error) {
	name, ok := m[id]
	if !ok {
		return Ref{}, ErrNotFound
	}
	return Ref{ID: id, Name: name}, nil
}

func (s *memoryAssignmentStore) RolePermissions(ctx context.Context, roleID int64) ([]Ref, error) {
	return s.refs(s.rolePerms[roleID], s.permissions), nil
}

func (s *memoryAssignmentStore) UserRoles(ctx context.Context, userID int64) ([]Ref, error) {
	return s.refs(s.userRoles[userID], s.roles), nil
}

func (s *memoryAssignmentStore) PageRoles(ctx context.Context, pageID int64) ([]Ref, error) {
	return s.refs(s.pageRoles[pageID], s.roles), nil
}

func (s *memoryAssignmentStore) refs(ids []int64, names map[int64]string) []Ref {
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Ref{ID: id, Name: names[id]})
	}
	return refs
}

func (s *memoryAssignmentStore) InTx(ctx context.Context, fn func(AssignmentTx) error) error {
	tx := &memoryAssignmentTx{
		store:     s,
		rolePerms: copyAssoc(s.rolePerms),
		userRoles: copyAssoc(s.userRoles),
		pageRoles: copyAssoc(s.pageRoles),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.rolePerms = tx.rolePerms
	s.userRoles = tx.userRoles
	s.pageRoles = tx.pageRoles
	return nil
}

func copyAssoc(src map[int64][]int64) map[int64][]int64 {
	dst := make(map[int64][]int64, len(src))
	for k, v := range src {
		dst[k] = append([]int64(nil), v...)
	}
	return dst
}

func (t *memoryAssignmentTx) DeleteRolePermissions(ctx context.Context, roleID int64) error {
	delete(t.rolePerms, roleID)
	return nil
}

func (t *memoryAssignmentTx) InsertRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	t.store.inserts++
	t.rolePerms[roleID] = append(t.rolePerms[roleID], permissionIDs...)
	return nil
}

func (t *memoryAssignmentTx) ExistingPermissions(ctx context.Context, ids []int64) ([]Ref, error) {
	return t.existing(ids, t.store.permissions), nil
}

func (t *memoryAssignmentTx) DeleteUserRoles(ctx context.Context, userID int64) error {
	delete(t.userRoles, userID)
	return nil
}

func (t *memoryAssignmentTx) InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	t.store.inserts++
	t.userRoles[userID] = append(t.userRoles[userID], roleIDs...)
	return nil
}

func (t *memoryAssignmentTx) ExistingRoles(ctx context.Context, ids []int64) ([]Ref, error) {
	return t.existing(ids, t.store.roles), nil
}

func (t *memoryAssignmentTx) DeletePageRoles(ctx context.Context, pageID int64) error {
	delete(t.pageRoles, pageID)
	return nil
}

func (t *memoryAssignmentTx) InsertPageRoles(ctx context.Context, pageID int64, roleIDs []int64) error {
	t.store.inserts++
	t.pageRoles[pageID] = append(t.pageRoles[pageID], roleIDs...)
	return nil
}

func (t *memoryAssignmentTx) existing(ids []int64, names map[int64]string) []Ref {
	var refs []Ref
	for _, id := range ids {
		if name, ok := names[id]; ok {
			refs = append(refs, Ref{ID: id, Name: name})
		}
	}
	return refs
}

type capturingRecorder struct {
	records []audit.Record
	err     error
}

func (r *capturingRecorder) Record(ctx context.Context, rec audit.Record) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func TestReplaceRolePermissionsEndToEnd(t *testing.T) {
	store := newMemoryAssignmentStore()
	store.rolePerms[1] = []int64{100, 101}
	recorder := &capturingRecorder{}
	svc := NewAssignmentService(store, recorder, nil)

	result, err := svc.ReplaceRolePermissions(context.Background(), 1, []int64{101, 102})
	require.NoError(t, err)

	require.Equal(t, Ref{ID: 1, Name: "Operator"}, result.Target)
	require.Equal(t, []int64{102}, result.Added)
	require.Equal(t, []int64{100}, result.Removed)
	require.ElementsMatch(t, []int64{101, 102}, store.rolePerms[1])

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	require.Equal(t, audit.ActionAssign, rec.Action)
	require.Equal(t, audit.EntityRole, rec.Entity)
	require.Equal(t, "1", rec.EntityID)
}

func TestReplaceWithMissingIDsAbortsWithoutPartialWrites(t *testing.T) {
	store := newMemoryAssignmentStore()
	store.rolePerms[1] = []int64{100}
	svc := NewAssignmentService(store, &capturingRecorder{}, nil)

	_, err := svc.ReplaceRolePermissions(context.Background(), 1, []int64{101, 999, 888})

	var missing *MissingIDsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []int64{888, 999}, missing.IDs)
	require.ErrorIs(t, err, httpx.ErrValidation)

	// The delete inside the aborted transaction must not survive.
	require.Equal(t, []int64{100}, store.rolePerms[1])
	require.Zero(t, store.inserts)
}

func TestReplaceEmptyDesiredRemovesAllWithoutInsert(t *testing.T) {
	store := newMemoryAssignmentStore()
	store.userRoles[10] = []int64{1, 2}
	recorder := &capturingRecorder{}
	svc := NewAssignmentService(store, recorder, nil)

	result, err := svc.ReplaceUserRoles(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Empty(t, store.userRoles[10])
	require.Zero(t, store.inserts)
	require.Empty(t, result.After)
	require.ElementsMatch(t, []int64{1, 2}, result.Removed)
	require.Len(t, recorder.records, 1)
}

func TestReplaceDeduplicatesDesiredIDs(t *testing.T) {
	store := newMemoryAssignmentStore()
	svc := NewAssignmentService(store, nil, nil)

	result, err := svc.ReplacePageRoles(context.Background(), 20, []int64{1, 1, 2, 2})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, store.pageRoles[20])
	require.Equal(t, []int64{1, 2}, result.Added)
}

func TestReplaceUnknownTargetFails(t *testing.T) {
	store := newMemoryAssignmentStore()
	svc := NewAssignmentService(store, nil, nil)

	_, err := svc.ReplaceUserRoles(context.Background(), 404, []int64{1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceRecordsActorAndRequestOrigin(t *testing.T) {
	store := newMemoryAssignmentStore()
	recorder := &capturingRecorder{}
	svc := NewAssignmentService(store, recorder, nil)

	sess := &shared.Session{}
	sess.SetPrincipal(&shared.Principal{ID: 7, Name: "Ana", LastName: "Silva"})
	ctx := shared.ContextWithSession(context.Background(), sess)
	ctx = shared.ContextWithClient(ctx, shared.Client{IP: "203.0.113.9", UserAgent: "vantage-test/1.0"})

	_, err := svc.ReplaceRolePermissions(ctx, 1, []int64{100})
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	require.Equal(t, int64(7), rec.ActorID)
	require.Equal(t, "Ana Silva", rec.ActorName)
	require.Equal(t, "203.0.113.9", rec.IPAddress)
	require.Equal(t, "vantage-test/1.0", rec.UserAgent)
}

func TestReplaceSucceedsWhenAuditAppendFails(t *testing.T) {
	store := newMemoryAssignmentStore()
	recorder := &capturingRecorder{err: errors.New("audit store down")}
	svc := NewAssignmentService(store, recorder, nil)

	result, err := svc.ReplaceRolePermissions(context.Background(), 1, []int64{100})
	require.NoError(t, err)
	require.Equal(t, []int64{100}, store.rolePerms[1])
	require.Equal(t, []int64{100}, result.Added)
}
