package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/shared"
)

// SettingsSource resolves the billing window configuration once per request.
type SettingsSource interface {
	Billing(ctx context.Context) (period.Settings, error)
}

// TransitionObserver counts lifecycle transition attempts by outcome.
type TransitionObserver interface {
	ObserveTransition(action, outcome string)
}

// Handler wires HTTP endpoints for the invoice lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	settings SettingsSource
	metrics  TransitionObserver
	now      func() time.Time
}

// NewHandler constructs an invoices HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, settings SettingsSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, settings: settings, now: time.Now}
}

// WithMetrics attaches a transition counter.
func (h *Handler) WithMetrics(m TransitionObserver) *Handler {
	h.metrics = m
	return h
}

// Routes returns the invoice lifecycle router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/submit", h.handleSubmit)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/approve", h.adminOnly(h.handleApprove))
	r.Post("/{id}/pay", h.adminOnly(h.handlePay))
	r.Post("/{id}/revert", h.adminOnly(h.handleRevert))
	r.Post("/{id}/cancel", h.adminOnly(h.handleCancel))
	return r
}

// DeadlineRoutes returns the read-only deadline report router.
func (h *Handler) DeadlineRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleDeadlines)
	return r
}

// adminOnly performs the capability check before admin transitions; the
// service itself accepts an already-authorized actor id.
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !shared.ActorFromContext(r.Context()).IsAdmin() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	settings, err := h.settings.Billing(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	inv, err := h.service.Submit(r.Context(), actor.UserID, settings)
	h.observe("submit", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Status: Status(q.Get("status")), Limit: 100}
	if userID, err := strconv.ParseInt(q.Get("user_id"), 10, 64); err == nil {
		f.UserID = userID
	}
	list, err := h.service.List(r.Context(), f, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": list})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve", h.service.Approve)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pay", h.service.MarkPaid)
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "revert", h.service.RevertToDraft)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, int64, int64) (*Invoice, error)) {
	actor := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := op(r.Context(), id, actor.UserID)
	h.observe(action, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) observe(action string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveTransition(action, transitionOutcome(err))
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func (h *Handler) handleDeadlines(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Billing(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report, err := h.service.DeadlineReport(r.Context(), h.now(), settings)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error("invoices request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
