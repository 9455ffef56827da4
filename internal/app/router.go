package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/auth"
	"github.com/vantage-admin/vantage-admin/internal/observability"
	"github.com/vantage-admin/vantage-admin/internal/pages"
	"github.com/vantage-admin/vantage-admin/internal/permissions"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
	"github.com/vantage-admin/vantage-admin/internal/roles"
	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/internal/tickets"
	"github.com/vantage-admin/vantage-admin/internal/users"
	"github.com/vantage-admin/vantage-admin/internal/view"
	"github.com/vantage-admin/vantage-admin/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Renderer       *view.Renderer
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           *rbac.Gate

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *permissions.Handler
	PagesHandler       *pages.Handler
	TicketsHandler     *tickets.Handler
	AuditHandler       *audit.Handler
	AccessHandler      *rbac.AccessHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the full middleware chain and
// every section mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		Gate:           params.Gate,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess.Principal() == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		params.Renderer.Render(w, r, "pages/home.html", "Dashboard", map[string]any{
			"AppEnv": params.Config.AppEnv,
			"Errors": map[string]string{},
		}, http.StatusOK)
	})

	r.Get("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		params.Renderer.Render(w, r, "pages/unauthorized.html", "Access denied",
			map[string]any{"Errors": map[string]string{}}, http.StatusForbidden)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.PagesHandler != nil {
		r.Route("/pages", params.PagesHandler.MountRoutes)
	}
	if params.TicketsHandler != nil {
		r.Route("/tickets", params.TicketsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.AccessHandler != nil {
		r.Route("/api/access", params.AccessHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with a one hour Cache-Control
// header for browser caching of JS, CSS and images.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
