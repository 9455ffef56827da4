package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
)

type memoryRoleRepo struct {
	nextID int64
	roles  map[int64]rbac.Role
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{nextID: 1, roles: map[int64]rbac.Role{}}
}

func (r *memoryRoleRepo) List(ctx context.Context) ([]rbac.Role, error) {
	out := make([]rbac.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRoleRepo) Get(ctx context.Context, id int64) (rbac.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) Create(ctx context.Context, name, description string, active bool) (rbac.Role, error) {
	role := rbac.Role{ID: r.nextID, Name: name, Description: description, Active: active}
	r.roles[role.ID] = role
	r.nextID++
	return role, nil
}

func (r *memoryRoleRepo) Update(ctx context.Context, id int64, name, description string, active bool) (rbac.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	role.Name = name
	role.Description = description
	role.Active = active
	r.roles[id] = role
	return role, nil
}

func (r *memoryRoleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

type memoryRoleRecorder struct {
	records []audit.Record
}

func (r *memoryRoleRecorder) Record(ctx context.Context, rec audit.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func newRoleFixture(t *testing.T) (*Service, *memoryRoleRepo, *memoryRoleRecorder) {
	t.Helper()
	repo := newMemoryRoleRepo()
	recorder := &memoryRoleRecorder{}
	return NewService(repo, recorder, nil, "superadmin"), repo, recorder
}

func TestCanonicalName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"operator", "Operator"},
		{"  ops   team ", "Ops Team"},
		{"IT support", "IT Support"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanonicalName(tc.in))
	}
}

func TestCreateCanonicalizesAndAudits(t *testing.T) {
	svc, _, recorder := newRoleFixture(t)

	role, err := svc.Create(context.Background(), "  help   desk ", "tier one", true)
	require.NoError(t, err)
	require.Equal(t, "Help Desk", role.Name)

	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionCreate, recorder.records[0].Action)
	require.Equal(t, audit.EntityRole, recorder.records[0].Entity)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, repo, _ := newRoleFixture(t)

	_, err := svc.Create(context.Background(), "   ", "", true)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.roles)
}

func TestUpdateProtectsSuperRole(t *testing.T) {
	svc, repo, _ := newRoleFixture(t)
	super, err := repo.Create(context.Background(), "superadmin", "reserved", true)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), super.ID, "renamed", "", true)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Update(context.Background(), super.ID, "superadmin", "", false)
	require.ErrorIs(t, err, httpx.ErrValidation)

	// Changing the description while keeping name and active works.
	updated, err := svc.Update(context.Background(), super.ID, "superadmin", "the reserved role", true)
	require.NoError(t, err)
	require.Equal(t, "the reserved role", updated.Description)
}

func TestUpdateOrdinaryRole(t *testing.T) {
	svc, repo, recorder := newRoleFixture(t)
	role, err := repo.Create(context.Background(), "Operator", "", true)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), role.ID, "senior operator", "runs the floor", false)
	require.NoError(t, err)
	require.Equal(t, "Senior Operator", updated.Name)
	require.False(t, updated.Active)

	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionUpdate, recorder.records[0].Action)
	require.NotNil(t, recorder.records[0].Meta["before"])
}

func TestDeleteProtectsSuperRole(t *testing.T) {
	svc, repo, _ := newRoleFixture(t)
	super, err := repo.Create(context.Background(), "superadmin", "", true)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), super.ID), httpx.ErrValidation)
	require.Contains(t, repo.roles, super.ID)
}

func TestDeleteOrdinaryRole(t *testing.T) {
	svc, repo, recorder := newRoleFixture(t)
	role, err := repo.Create(context.Background(), "Operator", "", true)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), role.ID))
	require.NotContains(t, repo.roles, role.ID)
	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionDelete, recorder.records[0].Action)
}

func TestDeleteUnknownRole(t *testing.T) {
	svc, _, _ := newRoleFixture(t)
	require.ErrorIs(t, svc.Delete(context.Background(), 99), rbac.ErrNotFound)
}
