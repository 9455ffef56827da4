package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// Middleware provides permission-based route guards. Permissions are read
// from the session principal: they were flattened at login and hold for the
// session lifetime.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny passes requests whose principal holds at least one of the given
// permissions. Super users always pass.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if principal.SuperUser || holdsAny(principal.Permissions, required) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, principal)
		})
	}
}

// RequireAll passes requests whose principal holds every given permission.
// Super users always pass.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if principal.SuperUser || holdsAll(principal.Permissions, required) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, principal)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, principal *shared.Principal) {
	if m.Logger != nil {
		m.Logger.Warn("permission denied",
			slog.String("path", r.URL.Path),
			slog.Int64("user", principal.ID))
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func holdsAny(granted []string, required []string) bool {
	set := permissionSet(granted)
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func holdsAll(granted []string, required []string) bool {
	set := permissionSet(granted)
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

func permissionSet(granted []string) map[string]struct{} {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}
