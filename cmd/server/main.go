// Life OS Dashboard - personal productivity backend
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/cyprianokoli/life-os-dashboard/internal/api"
	"github.com/cyprianokoli/life-os-dashboard/internal/assistant"
	"github.com/cyprianokoli/life-os-dashboard/internal/cache"
	"github.com/cyprianokoli/life-os-dashboard/internal/config"
	"github.com/cyprianokoli/life-os-dashboard/internal/middleware"
	"github.com/cyprianokoli/life-os-dashboard/internal/store"
	"github.com/cyprianokoli/life-os-dashboard/internal/worker"
	"github.com/cyprianokoli/life-os-dashboard/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "user", cfg.DefaultUser, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize document store", "error", err)
		os.Exit(1)
	}
	slog.Info("Document store ready", "dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Worker subsystem: websocket hub, sync queue, notification scheduler.
	hub := worker.NewHub()
	queue := worker.NewSyncQueue(cfg.APIBase, hub)
	scheduler := worker.NewScheduler(hub)
	defer scheduler.Stop()
	hub.SetQueue(queue)
	hub.SetScheduler(scheduler)

	worker.StartReminderWorker(ctx, hub, cfg.ReminderInterval)

	// Offline cache gateway (optional): fronts an upstream asset origin
	// with the network-first / cache-first strategies. Without an origin
	// the embedded frontend is served directly.
	var gateway *cache.Gateway
	if cfg.AssetOrigin != "" {
		cacheStore, err := cache.NewStore(cfg.CacheDBPath)
		if err != nil {
			slog.Error("Failed to open cache store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := cacheStore.Close(); closeErr != nil {
				slog.Error("Failed to close cache store", "error", closeErr)
			}
		}()

		gateway, err = cache.NewGateway(cacheStore, cfg.CacheVersion, cfg.AssetOrigin)
		if err != nil {
			slog.Error("Failed to create cache gateway", "error", err)
			os.Exit(1)
		}
		gateway.Install(ctx)
		if err := gateway.Activate(ctx); err != nil {
			slog.Error("Cache activation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Offline cache gateway ready", "origin", cfg.AssetOrigin, "cache", cfg.CacheVersion)
	}

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, assistant.New(), cfg.DefaultUser)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	apiHandler.RegisterRoutes(r)

	// Worker message channel.
	r.Get("/ws/worker", hub.ServeHTTP)

	// Frontend: offline gateway when configured, embedded SPA otherwise.
	// Either way unrecognized paths resolve to the main page.
	if gateway != nil {
		r.Handle("/*", gateway)
	} else {
		r.Handle("/*", web.SPAHandler())
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout; the worker websocket is long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
