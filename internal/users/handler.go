package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/shared"
)

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a users HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// Routes returns the user management router. All endpoints are admin-only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.adminOnly)
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	return r
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.ActorFromContext(r.Context()).IsAdmin() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userView struct {
	ID         int64            `json:"id"`
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Role       Role             `json:"role"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`
	IsActive   bool             `json:"is_active"`
}

func viewOf(u User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, HourlyRate: u.HourlyRate, IsActive: u.IsActive}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	views := make([]userView, len(list))
	for i, u := range list {
		views[i] = viewOf(u)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

type createUserRequest struct {
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Role       Role             `json:"role"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	Password   string           `json:"password"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	u, err := h.service.Create(r.Context(), CreateUserInput{
		Email:      req.Email,
		Name:       req.Name,
		Role:       req.Role,
		HourlyRate: req.HourlyRate,
		Password:   req.Password,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(*u))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error("users request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
