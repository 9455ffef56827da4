package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
)

// AccessCheckRequest is the wire form of a client-side access recheck.
type AccessCheckRequest struct {
	Path  string   `json:"path"`
	Roles []string `json:"roles"`
}

// AccessCheckResponse mirrors the decision function result.
type AccessCheckResponse struct {
	HasAccess bool `json:"hasAccess"`
}

// AccessHandler serves the access-check endpoint used by client-navigated
// route transitions. It is defense in depth for UI rendering only; the
// request gate remains the trust boundary for full requests.
type AccessHandler struct {
	logger *slog.Logger
	access *AccessService
}

// NewAccessHandler constructs an AccessHandler.
func NewAccessHandler(logger *slog.Logger, access *AccessService) *AccessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessHandler{logger: logger, access: access}
}

// MountRoutes registers the access-check API route.
func (h *AccessHandler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

func (h *AccessHandler) check(w http.ResponseWriter, r *http.Request) {
	var req AccessCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Path == "" || req.Roles == nil {
		httpx.JSON(w, http.StatusBadRequest, AccessCheckResponse{HasAccess: false})
		return
	}

	allowed, err := h.access.Decide(r.Context(), req.Path, req.Roles)
	if err != nil {
		h.logger.Error("access check failed", slog.String("path", req.Path), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, AccessCheckResponse{HasAccess: false})
		return
	}
	httpx.JSON(w, http.StatusOK, AccessCheckResponse{HasAccess: allowed})
}
