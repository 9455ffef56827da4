package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  *view.Renderer
	sessions  *shared.SessionManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer *view.Renderer, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		renderer:  renderer,
		sessions:  sessions,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/password/forgot", h.showForgot)
	r.Post("/password/forgot", h.handleForgot)
	r.Get("/password/reset", h.showReset)
	r.Post("/password/reset", h.handleReset)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type formErrors map[string]string

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/login.html", "Sign in",
		map[string]any{"Form": loginForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
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
		principal, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = "Invalid email or password"
		case err != nil:
			h.logger.Error("authenticate", slog.Any("error", err))
			errs["general"] = "Something went wrong, try again"
		default:
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				// Rotate the session ID before granting it a principal.
				if err := h.sessions.Renew(r.Context(), sess); err != nil {
					h.logger.Error("session renew failed", slog.Any("error", err))
				}
				sess.SetPrincipal(principal)
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
			} else {
				h.logger.Error("session missing during login")
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	h.renderer.Render(w, r, "pages/login.html", "Sign in",
		map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.service.RecordLogout(r.Context(), sess.Principal())
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) showForgot(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "pages/password_forgot.html", "Recover password",
		map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	if err := h.validator.Var(email, "required,email"); err != nil {
		h.renderer.Render(w, r, "pages/password_forgot.html", "Recover password",
			map[string]any{"Errors": formErrors{"general": "Enter a valid email address"}}, http.StatusBadRequest)
		return
	}
	if err := h.service.StartPasswordReset(r.Context(), email); err != nil {
		h.logger.Error("start password reset", slog.Any("error", err))
	}
	// Same response whether or not the address exists.
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "If that address exists, a reset link is on its way"})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, "pages/password_reset.html", "Reset password",
		map[string]any{"Token": token, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	token := r.PostFormValue("token")
	password := r.PostFormValue("password")

	if err := h.validator.Var(password, "required,min=8"); err != nil {
		h.renderer.Render(w, r, "pages/password_reset.html", "Reset password",
			map[string]any{"Token": token, "Errors": formErrors{"Password": "Password must be at least 8 characters"}}, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), token, password)
	switch {
	case errors.Is(err, shared.ErrResetTokenInvalid):
		h.renderer.Render(w, r, "pages/password_reset.html", "Reset password",
			map[string]any{"Token": token, "Errors": formErrors{"general": "This reset link is invalid or has expired"}}, http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("reset password", slog.Any("error", err))
		h.renderer.Render(w, r, "pages/password_reset.html", "Reset password",
			map[string]any{"Token": token, "Errors": formErrors{"general": "Something went wrong, try again"}}, http.StatusInternalServerError)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Password updated, sign in with the new one"})
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
