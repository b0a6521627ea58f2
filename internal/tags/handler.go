package tags

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tempora-app/tempora/internal/platform/httpx"
)

// Source lists the tag enumeration.
type Source interface {
	List(ctx context.Context) ([]Tag, error)
}

// Handler serves the read-only tag enumeration.
type Handler struct {
	logger *slog.Logger
	source Source
}

// NewHandler constructs a tags HTTP handler.
func NewHandler(logger *slog.Logger, source Source) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, source: source}
}

// Routes returns the tags router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.source.List(r.Context())
	if err != nil {
		h.logger.Error("tags request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tags": list})
}
