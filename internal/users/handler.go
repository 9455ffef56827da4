package users

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

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("users.view", "users.edit"))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("users.edit"))
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

type userForm struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,max=100"`
	LastName string `validate:"max=100"`
	Password string
	Active   bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/users/list.html", "Users",
			map[string]any{"Errors": formErrors{"general": "Could not load users"}}, http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "pages/users/list.html", "Users",
		map[string]any{"Users": list, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/users/form.html", "New user",
		map[string]any{"Form": userForm{Active: true}, "Action": "/users", "IsNew": true, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, errs := h.parseForm(r)
	if err := h.validator.Var(form.Password, "required,min=8"); err != nil {
		errs["Password"] = "Password must be at least 8 characters"
	}
	if len(errs) == 0 {
		_, err := h.service.Create(r.Context(), CreateInput{
			Email:    form.Email,
			Name:     form.Name,
			LastName: form.LastName,
			Password: form.Password,
			Active:   form.Active,
		})
		if err != nil {
			errs["general"] = h.userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/users/form.html", "New user",
			map[string]any{"Form": form, "Action": "/users", "IsNew": true, "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "success", "User created")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	form := userForm{Email: user.Email, Name: user.Name, LastName: user.LastName, Active: user.Active}
	h.renderer.Render(w, r, "pages/users/form.html", "Edit user",
		map[string]any{"User": user, "Form": form, "Action": "/users/" + strconv.FormatInt(user.ID, 10), "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	form, errs := h.parseForm(r)
	if form.Password != "" {
		if err := h.validator.Var(form.Password, "min=8"); err != nil {
			errs["Password"] = "Password must be at least 8 characters"
		}
	}
	if len(errs) == 0 {
		_, err := h.service.Update(r.Context(), user.ID, UpdateInput{
			Email:    form.Email,
			Name:     form.Name,
			LastName: form.LastName,
			Password: form.Password,
			Active:   form.Active,
		})
		if err != nil {
			errs["general"] = h.userMessage(err)
		}
	}
	if len(errs) > 0 {
		h.renderer.Render(w, r, "pages/users/form.html", "Edit user",
			map[string]any{"User": user, "Form": form, "Action": "/users/" + strconv.FormatInt(user.ID, 10), "Errors": errs}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "success", "User updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user.ID); err != nil {
		h.redirectWithFlash(w, r, "error", h.userMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "success", "User deleted")
}

type roleOption struct {
	ID       int64
	Name     string
	Assigned bool
}

func (h *Handler) showRoles(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	catalog, err := h.roles.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Could not load roles")
		return
	}
	current, err := h.assignments.UserRoles(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list user roles", slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Could not load user roles")
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
	h.renderer.Render(w, r, "pages/users/roles.html", "User roles",
		map[string]any{"User": user, "Roles": options, "Errors": formErrors{}}, http.StatusOK)
}

// replaceRoles accepts a form post (role_ids checkboxes) or a JSON body
// {"role_ids": [...]} and replaces the user's role set wholesale.
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

	result, err := h.assignments.ReplaceUserRoles(r.Context(), id, desired)
	if err != nil {
		if wantsJSON {
			h.respondAssignmentError(w, err)
			return
		}
		h.redirectWithFlash(w, r, "error", h.userMessage(err))
		return
	}

	message := "Roles updated"
	if len(result.After) == 0 {
		message = "All roles removed"
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
	case errors.Is(err, rbac.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	default:
		h.logger.Error("replace user roles", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "error", "User not found")
		return User{}, false
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.redirectWithFlash(w, r, "error", "User not found")
		} else {
			h.logger.Error("load user", slog.Any("error", err))
			h.redirectWithFlash(w, r, "error", "Could not load user")
		}
		return User{}, false
	}
	return user, true
}

func (h *Handler) parseForm(r *http.Request) (userForm, formErrors) {
	errs := formErrors{}
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Malformed form submission"
		return userForm{}, errs
	}
	form := userForm{
		Email:    r.PostFormValue("email"),
		Name:     r.PostFormValue("name"),
		LastName: r.PostFormValue("last_name"),
		Password: r.PostFormValue("password"),
		Active:   r.PostFormValue("active") == "1",
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
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

func (h *Handler) userMessage(err error) string {
	var missing *rbac.MissingIDsError
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.Is(err, httpx.ErrValidation):
		return err.Error()
	case errors.Is(err, httpx.ErrDuplicate):
		return "A user with that email already exists"
	case errors.Is(err, shared.ErrNotFound):
		return "User not found"
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
