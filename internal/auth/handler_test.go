package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/internal/view"
)

func TestLoginRotatesSessionID(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	mr := miniredis.RunT(t)
	sm := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "vantage_session", "secret", time.Hour, false)

	engine, err := view.NewEngine()
	require.NoError(t, err)
	renderer := view.NewRenderer(engine, shared.NewCSRFManager("csrf-secret"), nil, nil)
	h := NewHandler(nil, svc, renderer, sm)

	sess, err := sm.Load(httptest.NewRequest(http.MethodGet, "/auth/login", nil).Context(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.NoError(t, err)
	fixedID := sess.ID

	form := url.Values{"email": {"ana@vantage.local"}, "password": {"open-sesame"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	h.handleLogin(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.NotNil(t, sess.Principal())

	// A session ID fixed before login must not survive authentication.
	require.NotEqual(t, fixedID, sess.ID)
}
