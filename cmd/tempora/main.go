package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tempora-app/tempora/internal/app"
	"github.com/tempora-app/tempora/internal/entries"
	"github.com/tempora-app/tempora/internal/invoices"
	"github.com/tempora-app/tempora/internal/observability"
	"github.com/tempora-app/tempora/internal/platform/cache"
	"github.com/tempora-app/tempora/internal/platform/db"
	"github.com/tempora-app/tempora/internal/settings"
	"github.com/tempora-app/tempora/internal/tags"
	"github.com/tempora-app/tempora/internal/users"
	"github.com/tempora-app/tempora/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	tagRepo := tags.NewRepository(pool)
	tagHandler := tags.NewHandler(logger, tagRepo)

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo)
	userHandler := users.NewHandler(logger, userService)

	entryRepo := entries.NewRepository(pool)
	entryService := entries.NewService(entryRepo, tagRepo)
	importer := entries.NewImporter(entryRepo, tagRepo).WithMetrics(metrics)
	entryHandler := entries.NewHandler(logger, entryService, importer)

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo, redisClient)
	settingsHandler := settings.NewHandler(logger, settingsService)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, userService, jobs.NewNotifier(jobClient), logger)
	invoiceHandler := invoices.NewHandler(logger, invoiceService, settingsService).WithMetrics(metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		EntriesHandler:  entryHandler,
		InvoicesHandler: invoiceHandler,
		SettingsHandler: settingsHandler,
		TagsHandler:     tagHandler,
		UsersHandler:    userHandler,
		Pool:            pool,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
