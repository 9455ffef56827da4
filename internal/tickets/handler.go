package tickets

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/rbac"
	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/internal/view"
)

// Handler manages ticket endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  *view.Renderer
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer *view.Renderer, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		renderer:  renderer,
		rbac:      mw,
		validator: validator.New(),
	}
}

// MountRoutes registers ticket routes. Every signed-in administrator can
// raise and follow tickets; moving them through the lifecycle needs the
// edit permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("tickets.view", "tickets.edit"))
		r.Get("/", h.list)
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}", h.detail)
		r.Post("/{id}/comments", h.addComment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("tickets.edit"))
		r.Post("/{id}/status", h.transition)
	})
}

type formErrors map[string]string

type ticketForm struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=5000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := Filters{
		Status: Status(r.URL.Query().Get("status")),
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		filters.Page = page
	}
	if filters.Status != "" && !filters.Status.Valid() {
		filters.Status = ""
	}
	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list tickets", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/tickets/list.html", "Tickets",
			map[string]any{"Errors": formErrors{"general": "Could not load tickets"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/tickets/list.html", "Tickets", map[string]any{
		"Tickets":    result.Tickets,
		"Pagination": result.Pagination,
		"Status":     string(filters.Status),
		"Errors":     formErrors{},
	}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/tickets/form.html", "New ticket",
		map[string]any{"Form": ticketForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := ticketForm{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
	}
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = "invalid " + fieldErr.Field()
			}
		}
	}
	var ticket Ticket
	if len(errs) == 0 {
		var err error
		ticket, err = h.service.Create(r.Context(), form.Title, form.Description)
		if err != nil {
			errs["general"] = userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/tickets/form.html", "New ticket",
			map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.flash(r, "success", "Ticket "+ticket.Code+" opened")
	http.Redirect(w, r, "/tickets/"+strconv.FormatInt(ticket.ID, 10), http.StatusSeeOther)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.flash(r, "error", "Ticket not found")
		http.Redirect(w, r, "/tickets", http.StatusSeeOther)
		return
	}
	ticket, comments, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flash(r, "error", "Ticket not found")
		} else {
			h.logger.Error("load ticket", slog.Any("error", err))
			h.flash(r, "error", "Could not load ticket")
		}
		http.Redirect(w, r, "/tickets", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, "pages/tickets/detail.html", ticket.Code, map[string]any{
		"Ticket":      ticket,
		"Comments":    comments,
		"Transitions": transitionsFrom(ticket.Status),
		"Errors":      formErrors{},
	}, http.StatusOK)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	to := Status(r.PostFormValue("status"))
	ticket, err := h.service.Transition(r.Context(), id, to)
	if err != nil {
		h.flash(r, "error", userMessage(err))
		http.Redirect(w, r, "/tickets/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
		return
	}
	h.flash(r, "success", "Ticket moved to "+ticket.Status.Label())
	http.Redirect(w, r, "/tickets/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if _, err := h.service.AddComment(r.Context(), id, r.PostFormValue("body")); err != nil {
		h.flash(r, "error", userMessage(err))
	} else {
		h.flash(r, "success", "Comment added")
	}
	http.Redirect(w, r, "/tickets/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

// transitionOption is one lifecycle move offered on the detail page.
type transitionOption struct {
	Status Status
	Label  string
}

func transitionsFrom(from Status) []transitionOption {
	var options []transitionOption
	for _, to := range []Status{StatusOpen, StatusInProgress, StatusClosed} {
		if to != from && allowedTransition(from, to) {
			options = append(options, transitionOption{Status: to, Label: to.Label()})
		}
	}
	return options
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, httpx.ErrValidation):
		return err.Error()
	case errors.Is(err, shared.ErrNotFound):
		return "Ticket not found"
	default:
		return "Something went wrong, try again"
	}
}
