package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

type memoryUserRepo struct {
	nextID int64
	users  map[int64]User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{nextID: 1, users: map[int64]User{}}
}

func (r *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUserRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) Create(ctx context.Context, u User) (User, error) {
	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) Update(ctx context.Context, u User) (User, error) {
	current, ok := r.users[u.ID]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	u.PasswordHash = current.PasswordHash
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *memoryUserRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memoryUserRecorder struct {
	records []audit.Record
}

func (r *memoryUserRecorder) Record(ctx context.Context, rec audit.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func actorContext(principal *shared.Principal) context.Context {
	sess := &shared.Session{}
	sess.SetPrincipal(principal)
	return shared.ContextWithSession(context.Background(), sess)
}

func TestCreateHashesPasswordAndNormalizesEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	recorder := &memoryUserRecorder{}
	svc := NewService(repo, recorder, nil)

	user, err := svc.Create(context.Background(), CreateInput{
		Email:    "  Ana@Vantage.LOCAL ",
		Name:     " Ana ",
		LastName: " Silva ",
		Password: "open-sesame",
		Active:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "ana@vantage.local", user.Email)
	require.Equal(t, "Ana", user.Name)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("open-sesame")))

	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionCreate, recorder.records[0].Action)
}

func TestCreateRequiresEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{Email: "  ", Password: "x"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateWithoutPasswordKeepsHash(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateInput{Email: "ana@vantage.local", Password: "open-sesame", Active: true})
	require.NoError(t, err)
	originalHash := repo.users[user.ID].PasswordHash

	updated, err := svc.Update(context.Background(), user.ID, UpdateInput{Email: "ana@vantage.local", Name: "Ana", Active: false})
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Equal(t, originalHash, repo.users[user.ID].PasswordHash)
}

func TestUpdateWithPasswordReplacesHash(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateInput{Email: "ana@vantage.local", Password: "open-sesame", Active: true})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), user.ID, UpdateInput{Email: "ana@vantage.local", Password: "fresh-pass", Active: true})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("fresh-pass")))
}

func TestDeleteBlocksSelf(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateInput{Email: "ana@vantage.local", Password: "x", Active: true})
	require.NoError(t, err)

	err = svc.Delete(actorContext(&shared.Principal{ID: user.ID}), user.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, repo.users, user.ID)
}

func TestDeleteOtherAccount(t *testing.T) {
	repo := newMemoryUserRepo()
	recorder := &memoryUserRecorder{}
	svc := NewService(repo, recorder, nil)

	user, err := svc.Create(context.Background(), CreateInput{Email: "old@vantage.local", Password: "x", Active: false})
	require.NoError(t, err)
	recorder.records = nil

	require.NoError(t, svc.Delete(actorContext(&shared.Principal{ID: 99}), user.ID))
	require.NotContains(t, repo.users, user.ID)
	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionDelete, recorder.records[0].Action)
	require.Equal(t, int64(99), recorder.records[0].ActorID)
}
