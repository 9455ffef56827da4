package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

type memoryAuthRepo struct {
	users map[string]*User
	roles map[int64][]string
	perms map[int64][]string

	updatedID   int64
	updatedHash string
}

func (r *memoryAuthRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryAuthRepo) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return r.roles[userID], nil
}

func (r *memoryAuthRepo) PermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return r.perms[userID], nil
}

func (r *memoryAuthRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	r.updatedID = userID
	r.updatedHash = passwordHash
	return nil
}

type memoryMailer struct {
	to      string
	subject string
	html    string
	sent    int
}

func (m *memoryMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	m.to = to
	m.subject = subject
	m.html = html
	m.sent++
	return nil
}

type memoryAuthRecorder struct {
	records []audit.Record
}

func (r *memoryAuthRecorder) Record(ctx context.Context, rec audit.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T) (*Service, *memoryAuthRepo, *memoryMailer, *memoryAuthRecorder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := &memoryAuthRepo{
		users: map[string]*User{
			"ana@vantage.local": {
				ID:           7,
				Email:        "ana@vantage.local",
				Name:         "Ana",
				LastName:     "Silva",
				PasswordHash: hashPassword(t, "open-sesame"),
				Active:       true,
			},
			"off@vantage.local": {
				ID:           8,
				Email:        "off@vantage.local",
				Name:         "Old",
				PasswordHash: hashPassword(t, "open-sesame"),
				Active:       false,
			},
		},
		roles: map[int64][]string{7: {"Operator", "Support"}},
		perms: map[int64][]string{7: {"users.view", "tickets.edit"}},
	}
	mailer := &memoryMailer{}
	recorder := &memoryAuthRecorder{}
	svc := NewService(ServiceConfig{
		Repo:      repo,
		Redis:     redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Mailer:    mailer,
		Recorder:  recorder,
		SuperRole: "superadmin",
		BaseURL:   "https://admin.vantage.local",
	})
	return svc, repo, mailer, recorder, mr
}

func TestAuthenticateDerivesPrincipal(t *testing.T) {
	svc, _, _, recorder, _ := newAuthFixture(t)

	principal, err := svc.Authenticate(context.Background(), "ana@vantage.local", "open-sesame")
	require.NoError(t, err)

	require.Equal(t, int64(7), principal.ID)
	require.Equal(t, "Ana Silva", principal.DisplayName())
	require.Equal(t, []string{"Operator", "Support"}, principal.Roles)
	require.Equal(t, []string{"users.view", "tickets.edit"}, principal.Permissions)
	require.False(t, principal.SuperUser)

	require.Len(t, recorder.records, 1)
	require.Equal(t, audit.ActionLogin, recorder.records[0].Action)
	require.Equal(t, "7", recorder.records[0].EntityID)
}

func TestAuthenticateRecordsRequestOrigin(t *testing.T) {
	svc, _, _, recorder, _ := newAuthFixture(t)

	ctx := shared.ContextWithClient(context.Background(), shared.Client{IP: "198.51.100.4", UserAgent: "vantage-test/1.0"})
	_, err := svc.Authenticate(ctx, "ana@vantage.local", "open-sesame")
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	require.Equal(t, "198.51.100.4", recorder.records[0].IPAddress)
	require.Equal(t, "vantage-test/1.0", recorder.records[0].UserAgent)
}

func TestAuthenticateFlagsSuperRole(t *testing.T) {
	svc, repo, _, _, _ := newAuthFixture(t)
	repo.roles[7] = []string{"superadmin"}

	principal, err := svc.Authenticate(context.Background(), "ana@vantage.local", "open-sesame")
	require.NoError(t, err)
	require.True(t, principal.SuperUser)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _, _, recorder, _ := newAuthFixture(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ana@vantage.local", "guess"},
		{"inactive account", "off@vantage.local", "open-sesame"},
		{"unknown email", "nobody@vantage.local", "open-sesame"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tc.email, tc.password)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
	require.Empty(t, recorder.records)
}

func TestPasswordResetRoundtrip(t *testing.T) {
	svc, repo, mailer, _, mr := newAuthFixture(t)

	require.NoError(t, svc.StartPasswordReset(context.Background(), "ana@vantage.local"))
	require.Equal(t, 1, mailer.sent)
	require.Equal(t, "ana@vantage.local", mailer.to)
	require.Contains(t, mailer.html, "https://admin.vantage.local/auth/password/reset?token=")

	keys := mr.Keys()
	require.Len(t, keys, 1)
	token := strings.TrimPrefix(keys[0], "pwreset:")

	require.NoError(t, svc.ResetPassword(context.Background(), token, "brand-new-pass"))
	require.Equal(t, int64(7), repo.updatedID)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.updatedHash), []byte("brand-new-pass")))

	// Single use: the token is consumed on success.
	err := svc.ResetPassword(context.Background(), token, "again")
	require.ErrorIs(t, err, shared.ErrResetTokenInvalid)
}

func TestStartPasswordResetHidesUnknownEmails(t *testing.T) {
	svc, _, mailer, _, mr := newAuthFixture(t)

	require.NoError(t, svc.StartPasswordReset(context.Background(), "nobody@vantage.local"))
	require.Zero(t, mailer.sent)
	require.Empty(t, mr.Keys())
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	err := svc.ResetPassword(context.Background(), "bogus", "whatever")
	require.ErrorIs(t, err, shared.ErrResetTokenInvalid)
}
