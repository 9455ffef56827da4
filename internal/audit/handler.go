package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-admin/vantage-admin/internal/view"
)

// Handler serves the audit timeline. The permission guard is injected as a
// plain middleware so this package stays a dependency of the authorization
// layer, not the other way round.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer *view.Renderer
	guard    func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer *view.Renderer, guard func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, renderer: renderer, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard)
		}
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/audit/list.html", "Audit trail",
			map[string]any{"Errors": map[string]string{"general": "Could not load the audit trail"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/audit/list.html", "Audit trail", map[string]any{
		"Entries":  result.Entries,
		"Paging":   result.Paging,
		"Filters":  filters,
		"Actions":  []Action{ActionCreate, ActionUpdate, ActionDelete, ActionAssign, ActionLogin, ActionLogout},
		"Entities": []Entity{EntityUser, EntityRole, EntityPermission, EntityPage, EntityTicket},
		"Errors":   map[string]string{},
	}, http.StatusOK)
}

func parseFilters(r *http.Request) Filters {
	q := r.URL.Query()
	f := Filters{
		Action:   Action(q.Get("action")),
		Entity:   Entity(q.Get("entity")),
		EntityID: q.Get("entity_id"),
	}
	if actor, err := strconv.ParseInt(q.Get("actor_id"), 10, 64); err == nil {
		f.ActorID = actor
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		// Make the upper bound inclusive of the whole day.
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	return f
}
