package entries

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/platform/httpx"
	"github.com/tempora-app/tempora/internal/shared"
)

// Handler wires HTTP endpoints for the entry ledger and bulk imports.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	importer *Importer
}

// NewHandler constructs an entries HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, importer *Importer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, importer: importer}
}

// Routes returns the entry ledger router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/import", h.handleImport)
	return r
}

type entryRequest struct {
	Date  string           `json:"date"`
	Hours decimal.Decimal  `json:"hours"`
	Task  string           `json:"task"`
	Notes string           `json:"notes"`
	Tag   string           `json:"tag"`
	Rate  *decimal.Decimal `json:"rate"`
}

func (req entryRequest) fields() EntryFields {
	return EntryFields{
		Date:  req.Date,
		Hours: req.Hours,
		Task:  req.Task,
		Notes: req.Notes,
		Tag:   req.Tag,
		Rate:  req.Rate,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	entry, err := h.service.Create(r.Context(), actor.UserID, req.fields())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	entry, err := h.service.Update(r.Context(), actor.UserID, id, req.fields())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	if err := h.service.Delete(r.Context(), actor.UserID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := r.URL.Query()

	f := ListFilter{UserID: actor.UserID, PerPage: 50}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	if from, err := time.Parse(DateLayout, q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse(DateLayout, q.Get("to")); err == nil {
		f.To = to
	}
	if open := q.Get("open"); open != "" {
		v := open == "true"
		f.Open = &v
	}

	list, total, err := h.service.List(r.Context(), f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    list,
		"pagination": shared.NewPagination(f.Page, f.PerPage, total),
	})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	key := r.Header.Get("Idempotency-Key")

	var rows []ImportRow
	if err := httpx.DecodeJSON(r, &rows); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}

	result, err := h.importer.ImportBatch(r.Context(), actor.UserID, key, rows)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsInternal(err) {
		h.logger.Error("entries request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
