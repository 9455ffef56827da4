package view

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// NavSource supplies the navigation menu already filtered for a principal.
type NavSource interface {
	Menu(ctx context.Context, principal *shared.Principal) []shared.NavItem
}

// Renderer assembles the per-request TemplateData every page shares: CSRF
// token, flash, principal and the navigation menu filtered for that
// principal.
type Renderer struct {
	engine *Engine
	csrf   *shared.CSRFManager
	nav    NavSource
	logger *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(engine *Engine, csrf *shared.CSRFManager, nav NavSource, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: engine, csrf: csrf, nav: nav, logger: logger}
}

// Render writes the template with the shared chrome populated. Render errors
// are logged; by then headers are already written so the response is left as
// is.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(req.Context())
	csrfToken, _ := r.csrf.EnsureToken(req.Context(), sess)

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	principal := sess.Principal()

	var nav []shared.NavItem
	if r.nav != nil && principal != nil {
		nav = r.nav.Menu(req.Context(), principal)
	}

	viewData := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: req.URL.Path,
		Principal:   principal,
		Nav:         nav,
		Data:        data,
	}
	w.WriteHeader(status)
	if err := r.engine.Render(w, template, viewData); err != nil {
		r.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}
