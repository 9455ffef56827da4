package permissions

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

// Handler manages permission catalog endpoints.
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

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("permissions.view", "permissions.edit"))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("permissions.edit"))
		r.Post("/", h.create)
		r.Post("/{id}/delete", h.delete)
	})
}

type formErrors map[string]string

type permissionForm struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/permissions/list.html", "Permissions",
			map[string]any{"Form": permissionForm{}, "Errors": formErrors{"general": "Could not load permissions"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/permissions/list.html", "Permissions",
		map[string]any{"Permissions": perms, "Form": permissionForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := permissionForm{
		Name:        r.PostFormValue("name"),
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
	if len(errs) == 0 {
		if _, err := h.service.Create(r.Context(), form.Name, form.Description); err != nil {
			switch {
			case errors.Is(err, httpx.ErrDuplicate):
				errs["general"] = "A permission with that name already exists"
			case errors.Is(err, httpx.ErrValidation):
				errs["general"] = err.Error()
			default:
				h.logger.Error("create permission", slog.Any("error", err))
				errs["general"] = "Something went wrong, try again"
			}
		}
	}
	if len(errs) > 0 {
		perms, listErr := h.service.List(r.Context())
		if listErr != nil {
			h.logger.Error("list permissions", slog.Any("error", listErr))
		}
		h.renderer.Render(w, r, "pages/permissions/list.html", "Permissions",
			map[string]any{"Permissions": perms, "Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "success", "Permission created")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "error", "Permission not found")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			h.redirectWithFlash(w, r, "error", "Permission not found")
			return
		}
		h.logger.Error("delete permission", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Something went wrong, try again")
		return
	}
	h.redirectWithFlash(w, r, "success", "Permission deleted")
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/permissions", http.StatusSeeOther)
}
