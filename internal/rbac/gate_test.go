package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

func newTestGate(rules map[string][]string) *Gate {
	access := NewAccessService(&stubRuleStore{rules: rules})
	return NewGate(access, nil, GateConfig{
		LoginPath:        "/auth/login",
		LandingPath:      "/",
		UnauthorizedPath: "/unauthorized",
		PublicPrefixes:   []string{"/auth/", "/static/", "/healthz"},
	})
}

func serveGate(t *testing.T, gate *Gate, path string, principal *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if principal != nil {
		sess := &shared.Session{}
		sess.SetPrincipal(principal)
		req = req.WithContext(shared.ContextWithSession(context.Background(), sess))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	gate := newTestGate(nil)
	rec := serveGate(t, gate, "/users", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestGatePublicPrefixBypassesEverything(t *testing.T) {
	gate := newTestGate(map[string][]string{"/auth/login": {}})
	rec := serveGate(t, gate, "/auth/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateUnauthorizedPageIsAlwaysReachable(t *testing.T) {
	gate := newTestGate(nil)
	rec := serveGate(t, gate, "/unauthorized", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateLandingAlwaysAllowedToAuthenticated(t *testing.T) {
	// Even a rule locking "/" cannot bounce a fresh login.
	gate := newTestGate(map[string][]string{"/": {}})
	rec := serveGate(t, gate, "/", &shared.Principal{ID: 1, Roles: []string{"Support"}})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateSuperUserBypassesRules(t *testing.T) {
	gate := newTestGate(map[string][]string{"/users": {"Operator"}})
	rec := serveGate(t, gate, "/users", &shared.Principal{ID: 1, SuperUser: true})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateDeniesWithoutIntersection(t *testing.T) {
	var denied []string
	gate := newTestGate(map[string][]string{"/users": {"Operator"}})
	gate.cfg.OnDeny = func(path string) { denied = append(denied, path) }

	rec := serveGate(t, gate, "/users", &shared.Principal{ID: 1, Roles: []string{"Support"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/unauthorized", rec.Header().Get("Location"))
	require.Equal(t, []string{"/users"}, denied)
}

func TestGateAllowsUnmappedPath(t *testing.T) {
	gate := newTestGate(nil)
	rec := serveGate(t, gate, "/tickets", &shared.Principal{ID: 1, Roles: []string{"Support"}})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGateFailsClosedOnStoreError(t *testing.T) {
	access := NewAccessService(&stubRuleStore{err: context.DeadlineExceeded})
	gate := NewGate(access, nil, GateConfig{UnauthorizedPath: "/unauthorized"})

	rec := serveGate(t, gate, "/users", &shared.Principal{ID: 1, Roles: []string{"Operator"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}
