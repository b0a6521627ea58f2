package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/shared"
)

// Handler wires HTTP endpoints for the billing settings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a settings HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// Routes returns the settings router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/billing", h.handleGetBilling)
	r.Put("/billing", h.handleUpdateBilling)
	return r
}

func (h *Handler) handleGetBilling(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Billing(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) handleUpdateBilling(w http.ResponseWriter, r *http.Request) {
	if !shared.ActorFromContext(r.Context()).IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
		return
	}
	var in period.Settings
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	s, err := h.service.UpdateBilling(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error("settings request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
