package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "vantage_session", "test-secret", time.Hour, false), mr
}

func commitSession(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestLoadWithoutCookieCreatesFreshSession(t *testing.T) {
	sm, _ := newSessionManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Nil(t, sess.Principal())
}

func TestSessionRoundtripPersistsPrincipal(t *testing.T) {
	sm, _ := newSessionManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetPrincipal(&Principal{ID: 7, Name: "Ana", Roles: []string{"Operator"}, SuperUser: true})
	sess.Set("theme", "dark")
	cookie := commitSession(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	principal := loaded.Principal()
	require.NotNil(t, principal)
	require.Equal(t, int64(7), principal.ID)
	require.Equal(t, []string{"Operator"}, principal.Roles)
	require.True(t, principal.SuperUser)
	require.Equal(t, "dark", loaded.Get("theme"))
}

func TestFlashMessagesDrainInOrder(t *testing.T) {
	sm, _ := newSessionManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})
	sess.AddFlash(FlashMessage{Kind: "error", Message: "later"})
	cookie := commitSession(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	first := loaded.PopFlash()
	require.NotNil(t, first)
	require.Equal(t, "saved", first.Message)
	second := loaded.PopFlash()
	require.NotNil(t, second)
	require.Equal(t, "error", second.Kind)
	require.Nil(t, loaded.PopFlash())
}

func TestDestroyRemovesStoredSessionAndExpiresCookie(t *testing.T) {
	sm, mr := newSessionManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetPrincipal(&Principal{ID: 1})
	cookie := commitSession(t, sm, sess)
	require.True(t, mr.Exists("session:"+cookie.Value))

	sm.Destroy(sess)
	expired := commitSession(t, sm, sess)
	require.Equal(t, -1, expired.MaxAge)
	require.Empty(t, expired.Value)
	require.False(t, mr.Exists("session:"+cookie.Value))
}

func TestRenewRotatesSessionID(t *testing.T) {
	sm, mr := newSessionManager(t)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	oldCookie := commitSession(t, sm, sess)
	require.True(t, mr.Exists("session:"+oldCookie.Value))

	require.NoError(t, sm.Renew(context.Background(), sess))
	sess.SetPrincipal(&Principal{ID: 7})
	newCookie := commitSession(t, sm, sess)

	require.NotEqual(t, oldCookie.Value, newCookie.Value)
	require.False(t, mr.Exists("session:"+oldCookie.Value))
	require.True(t, mr.Exists("session:"+newCookie.Value))

	// The rotated session still loads with its principal.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(newCookie)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, loaded.Principal())
}

func TestLoadWithStaleCookieFallsBackToEmptySession(t *testing.T) {
	sm, _ := newSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "vantage_session", Value: "gone"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "gone", sess.ID)
	require.Nil(t, sess.Principal())
}
