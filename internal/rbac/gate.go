package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// GateConfig describes the paths the request gate treats specially.
type GateConfig struct {
	// LoginPath receives unauthenticated requests.
	LoginPath string
	// LandingPath is the canonical post-login page. It is always allowed to
	// authenticated users so a fresh login can never bounce straight into a
	// redirect loop.
	LandingPath string
	// UnauthorizedPath receives denied requests.
	UnauthorizedPath string
	// PublicPrefixes bypass the gate entirely (static assets, auth pages,
	// health and metrics endpoints, the unauthorized page itself).
	PublicPrefixes []string
	// OnDeny, when set, is called with the denied path. Used for metrics.
	OnDeny func(path string)
}

// Gate enforces the access decision function at the server boundary, before
// any protected page renders. Client-side rechecks exist for UI polish only;
// this middleware is the trust boundary.
type Gate struct {
	access *AccessService
	logger *slog.Logger
	cfg    GateConfig
}

// NewGate builds the request gate middleware.
func NewGate(access *AccessService, logger *slog.Logger, cfg GateConfig) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
	return &Gate{access: access, logger: logger, cfg: cfg}
}

// Middleware wraps next with the gate protocol: public paths pass, anonymous
// requests go to login, the landing page is always reachable, and everything
// else is decided by the rule store. Evaluation errors fail closed.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if g.isPublic(path) {
			next.ServeHTTP(w, r)
			return
		}

		principal := shared.PrincipalFromContext(r.Context())
		if principal == nil {
			http.Redirect(w, r, g.cfg.LoginPath, http.StatusSeeOther)
			return
		}

		if path == g.cfg.LandingPath {
			next.ServeHTTP(w, r)
			return
		}

		if principal.SuperUser {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := g.access.Decide(r.Context(), path, principal.Roles)
		if err != nil {
			g.logger.Error("access decision failed, denying",
				slog.String("path", path), slog.Any("error", err))
			g.deny(w, r, path)
			return
		}
		if !allowed {
			g.logger.Warn("access denied",
				slog.String("path", path),
				slog.Int64("user", principal.ID))
			g.deny(w, r, path)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, path string) {
	if g.cfg.OnDeny != nil {
		g.cfg.OnDeny(path)
	}
	http.Redirect(w, r, g.cfg.UnauthorizedPath, http.StatusSeeOther)
}

func (g *Gate) isPublic(path string) bool {
	if path == g.cfg.UnauthorizedPath {
		return true
	}
	for _, prefix := range g.cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
