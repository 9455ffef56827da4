package roles

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

// PermissionCatalog lists the permissions offered on the assignment form.
type PermissionCatalog interface {
	List(ctx context.Context) ([]rbac.Permission, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	assignments *rbac.AssignmentService
	permissions PermissionCatalog
	renderer    *view.Renderer
	rbac        rbac.Middleware
	validator   *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, assignments *rbac.AssignmentService, permissions PermissionCatalog, renderer *view.Renderer, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		assignments: assignments,
		permissions: permissions,
		renderer:    renderer,
		rbac:        mw,
		validator:   validator.New(),
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("roles.view", "roles.edit"))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("roles.edit"))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Get("/{id}/permissions", h.showPermissions)
		r.Post("/{id}/permissions", h.replacePermissions)
	})
}

type formErrors map[string]string

type roleForm struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Active      bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/roles/list.html", "Roles",
			map[string]any{"Errors": formErrors{"general": "Could not load roles"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/roles/list.html", "Roles",
		map[string]any{"Roles": list, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/roles/form.html", "New role",
		map[string]any{"Form": roleForm{Active: true}, "Action": "/roles", "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.service.Create(r.Context(), form.Name, form.Description, form.Active); err != nil {
			errs["general"] = userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/roles/form.html", "New role",
			map[string]any{"Form": form, "Action": "/roles", "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role created")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	form := roleForm{Name: role.Name, Description: role.Description, Active: role.Active}
	h.renderer.Render(w, r, "pages/roles/form.html", "Edit role",
		map[string]any{"Role": role, "Form": form, "Action": "/roles/" + strconv.FormatInt(role.ID, 10), "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	form, errs := h.parseForm(r)
	if len(errs) == 0 {
		if _, err := h.service.Update(r.Context(), role.ID, form.Name, form.Description, form.Active); err != nil {
			errs["general"] = userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/roles/form.html", "Edit role",
			map[string]any{"Role": role, "Form": form, "Action": "/roles/" + strconv.FormatInt(role.ID, 10), "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), role.ID); err != nil {
		h.redirectWithFlash(w, r, "/roles", "error", userMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "Role deleted")
}

type permissionOption struct {
	ID       int64
	Name     string
	Assigned bool
}

func (h *Handler) showPermissions(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadRole(w, r)
	if !ok {
		return
	}
	catalog, err := h.permissions.List(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", "error", "Could not load permissions")
		return
	}
	current, err := h.assignments.RolePermissions(r.Context(), role.ID)
	if err != nil {
		h.logger.Error("list role permissions", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/roles", "error", "Could not load role permissions")
		return
	}
	assigned := make(map[int64]bool, len(current))
	for _, ref := range current {
		assigned[ref.ID] = true
	}
	options := make([]permissionOption, len(catalog))
	for i, p := range catalog {
		options[i] = permissionOption{ID: p.ID, Name: p.Name, Assigned: assigned[p.ID]}
	}
	h.renderer.Render(w, r, "pages/roles/permissions.html", "Role permissions",
		map[string]any{"Role": role, "Permissions": options, "Errors": formErrors{}}, http.StatusOK)
}

// replacePermissions accepts either a form post (permission_ids checkboxes)
// or a JSON body {"permission_ids": [...]} and replaces the role's
// permission set wholesale.
func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	wantsJSON := r.Header.Get("Content-Type") == "application/json"
	var desired []int64
	if wantsJSON {
		var body struct {
			PermissionIDs []int64 `json:"permission_ids"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
		desired = body.PermissionIDs
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		desired, err = parseIDs(r.PostForm["permission_ids"])
		if err != nil {
			h.redirectWithFlash(w, r, "/roles", "error", "Invalid permission selection")
			return
		}
	}

	result, err := h.assignments.ReplaceRolePermissions(r.Context(), id, desired)
	if err != nil {
		if wantsJSON {
			h.respondAssignmentError(w, err)
			return
		}
		h.redirectWithFlash(w, r, "/roles", "error", userMessage(err))
		return
	}

	if wantsJSON {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": assignmentMessage(result),
		})
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", assignmentMessage(result))
}

func (h *Handler) respondAssignmentError(w http.ResponseWriter, err error) {
	var missing *rbac.MissingIDsError
	switch {
	case errors.As(err, &missing):
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"error": missing.Error()})
	case errors.Is(err, rbac.ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
	default:
		h.logger.Error("replace role permissions", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) loadRole(w http.ResponseWriter, r *http.Request) (rbac.Role, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/roles", "error", "Role not found")
		return rbac.Role{}, false
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			h.redirectWithFlash(w, r, "/roles", "error", "Role not found")
		} else {
			h.logger.Error("load role", slog.Any("error", err))
			h.redirectWithFlash(w, r, "/roles", "error", "Could not load role")
		}
		return rbac.Role{}, false
	}
	return role, true
}

func (h *Handler) parseForm(r *http.Request) (roleForm, formErrors) {
	errs := formErrors{}
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Malformed form submission"
		return roleForm{}, errs
	}
	form := roleForm{
		Name:        r.PostFormValue("name"),
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

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func assignmentMessage(result rbac.ReplaceResult) string {
	if len(result.After) == 0 {
		return "All permissions removed"
	}
	return "Permissions updated"
}

func userMessage(err error) string {
	var missing *rbac.MissingIDsError
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.Is(err, httpx.ErrValidation):
		return err.Error()
	case errors.Is(err, httpx.ErrDuplicate):
		return "A role with that name already exists"
	case errors.Is(err, rbac.ErrNotFound):
		return "Role not found"
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
