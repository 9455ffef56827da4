package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveLimited(t *testing.T, handler http.Handler, path string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "1.2.3.4:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitExemptsStaticAssets(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(3, time.Minute)(ok)

	// Asset fetches never consume the budget.
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, serveLimited(t, handler, "/static/css/app.css"))
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serveLimited(t, handler, "/users"))
	}
	require.Equal(t, http.StatusTooManyRequests, serveLimited(t, handler, "/users"))

	// Exhausting the page budget still leaves assets reachable.
	require.Equal(t, http.StatusOK, serveLimited(t, handler, "/static/js/app.js"))
}
