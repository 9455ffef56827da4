package pages

import (
	"context"
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

// RoleCatalog lists the roles offered on the assignment form.
type RoleCatalog interface {
	List(ctx context.Context) ([]rbac.Role, error)
}

// Handler manages page rule endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	assignments *rbac.AssignmentService
	roles       RoleCatalog
	renderer    *view.Renderer
	rbac        rbac.Middleware
	validator   *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, assignments *rbac.AssignmentService, roles RoleCatalog, renderer *view.Renderer, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		assignments: assignments,
		roles:       roles,
		renderer:    renderer,
		rbac:        mw,
		validator:   validator.New(),
	}
}

// MountRoutes registers page routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("pages.view", "pages.edit"))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("pages.edit"))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Get("/{id}/roles", h.showRoles)
		r.Post("/{id}/roles", h.replaceRoles)
	})
}

type formErrors map[string]string

type pageForm struct {
	Name        string `validate:"required,max=100"`
	Path        string `validate:"required,max=200"`
	Description string `validate:"max=500"`
	Active      bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list pages", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/pages/list.html", "Pages",
			map[string]any{"Errors": formErrors{"general": "Could not load pages"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/pages/list.html", "Pages",
		map[string]any{"Pages": list, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/pages/form.html", "New page",
		map[string]any{"Form": pageForm{Active: true}, "Action": "/pages", "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.service.Create(r.Context(), form.Name, form.Path, form.Description, form.Active); err != nil {
			errs["general"] = userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/pages/form.html", "New page",
			map[string]any{"Form": form, "Action": "/pages", "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "success", "Page created, attach roles to allow access")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	form := pageForm{Name: page.Name, Path: page.Path, Description: page.Description, Active: page.Active}
	h.renderer.Render(w, r, "pages/pages/form.html", "Edit page",
		map[string]any{"Page": page, "Form": form, "Action": "/pages/" + strconv.FormatInt(page.ID, 10), "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.service.Update(r.Context(), page.ID, form.Name, form.Path, form.Description, form.Active); err != nil {
			errs["general"] = userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/pages/form.html", "Edit page",
			map[string]any{"Page": page, "Form": form, "Action": "/pages/" + strconv.FormatInt(page.ID, 10), "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "success", "Page updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), page.ID); err != nil {
		h.redirectWithFlash(w, r, "error", userMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "success", "Page deleted, its path is no longer gated")
}

type roleOption struct {
	ID       int64
	Name     string
	Assigned bool
}

func (h *Handler) showRoles(w http.ResponseWriter, r *http.Request) {
	page, ok := h.loadPage(w, r)
	if !ok {
		return
	}
	catalog, err := h.roles.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Could not load roles")
		return
	}
	current, err := h.assignments.PageRoles(r.Context(), page.ID)
	if err != nil {
		h.logger.Error("list page roles", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Could not load page roles")
		return
	}
	assigned := make(map[int64]bool, len(current))
	for _, ref := range current {
		assigned[ref.ID] = true
	}
	options := make([]roleOption, 0, len(catalog))
	for _, role := range catalog {
		if !role.Active {
			continue
		}
		options = append(options, roleOption{ID: role.ID, Name: role.Name, Assigned: assigned[role.ID]})
	}
	h.renderer.Render(w, r, "pages/pages/roles.html", "Page roles",
		map[string]any{"Page": page, "Roles": options, "Errors": formErrors{}}, http.StatusOK)
}

// replaceRoles accepts a form post (role_ids checkboxes) or a JSON body
// {"role_ids": [...]} and replaces the page's allowed-role set wholesale.
// An empty selection is valid and locks the page for everyone but the
// reserved super role.
func (h *Handler) replaceRoles(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	wantsJSON := r.Header.Get("Content-Type") == "application/json"
	var desired []int64
	if wantsJSON {
		var body struct {
			RoleIDs []int64 `json:"role_ids"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
		desired = body.RoleIDs
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		desired, err = parseIDs(r.PostForm["role_ids"])
		if err != nil {
			h.redirectWithFlash(w, r, "error", "Invalid role selection")
			return
		}
	}

	result, err := h.assignments.ReplacePageRoles(r.Context(), id, desired)
	if err != nil {
		if wantsJSON {
			h.respondAssignmentError(w, err)
			return
		}
		h.redirectWithFlash(w, r, "error", userMessage(err))
		return
	}

	message := "Allowed roles updated"
	if len(result.After) == 0 {
		message = "All roles removed, this page now denies everyone"
	}
	if wantsJSON {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
		return
	}
	h.redirectWithFlash(w, r, "success", message)
}

func (h *Handler) respondAssignmentError(w http.ResponseWriter, err error) {
	var missing *rbac.MissingIDsError
	switch {
	case errors.As(err, &missing):
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": missing.Error()})
	case errors.Is(err, rbac.ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, map[string]string{"error": "page not found"})
	default:
		h.logger.Error("replace page roles", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) loadPage(w http.ResponseWriter, r *http.Request) (rbac.Page, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "error", "Page not found")
		return rbac.Page{}, false
	}
	page, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			h.redirectWithFlash(w, r, "error", "Page not found")
		} else {
			h.logger.Error("load page", slog.Any("error", err))
			h.redirectWithFlash(w, r, "error", "Could not load page")
		}
		return rbac.Page{}, false
	}
	return page, true
}

func (h *Handler) parseForm(r *http.Request) (pageForm, formErrors) {
	errs := formErrors{}
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Malformed form submission"
		return pageForm{}, errs
	}
	form := pageForm{
		Name:        r.PostFormValue("name"),
		Path:        r.PostFormValue("path"),
		Description: r.PostFormValue("description"),
		Active:      r.PostFormValue("active") == "1",
	}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = "invalid " + fieldErr.Field()
			}
		}
	}
	return form, errs
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/pages", http.StatusSeeOther)
}

func userMessage(err error) string {
	var missing *rbac.MissingIDsError
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.Is(err, httpx.ErrValidation):
		return err.Error()
	case errors.Is(err, httpx.ErrDuplicate):
		return "A page with that path already exists"
	case errors.Is(err, rbac.ErrNotFound):
		return "Page not found"
	default:
		return "Something went wrong, try again"
	}
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
