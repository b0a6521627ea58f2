package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempora-app/tempora/internal/entries"
	"github.com/tempora-app/tempora/internal/invoices"
	"github.com/tempora-app/tempora/internal/observability"
	"github.com/tempora-app/tempora/internal/settings"
	"github.com/tempora-app/tempora/internal/tags"
	"github.com/tempora-app/tempora/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	EntriesHandler  *entries.Handler
	InvoicesHandler *invoices.Handler
	SettingsHandler *settings.Handler
	TagsHandler     *tags.Handler
	UsersHandler    *users.Handler
	Pool            *pgxpool.Pool
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Tempora defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Error("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(RequireActor)
		api.Mount("/entries", params.EntriesHandler.Routes())
		api.Mount("/invoices", params.InvoicesHandler.Routes())
		api.Mount("/deadlines", params.InvoicesHandler.DeadlineRoutes())
		api.Mount("/settings", params.SettingsHandler.Routes())
		api.Mount("/tags", params.TagsHandler.Routes())
		api.Mount("/users", params.UsersHandler.Routes())
	})

	return r
}
