// Fleetscan - vehicle QR scan and checklist server
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

	"github.com/ashureev/fleetscan/internal/api"
	"github.com/ashureev/fleetscan/internal/client"
	"github.com/ashureev/fleetscan/internal/config"
	"github.com/ashureev/fleetscan/internal/decoder"
	"github.com/ashureev/fleetscan/internal/kiosk"
	"github.com/ashureev/fleetscan/internal/middleware"
	"github.com/ashureev/fleetscan/internal/store"
	"github.com/ashureev/fleetscan/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.Open(context.Background(), cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "postgres", cfg.DatabaseURL != "")

	backend, err := client.New(client.Config{
		BaseURL:        cfg.BackendURL,
		RequestTimeout: cfg.Timeout.Request,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("Failed to initialize backend client", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, decoder.NewQRDecoder(), cfg)
	healthHandler := api.NewHealthHandler(repo, cfg)

	registry := kiosk.NewRegistry()
	wsHandler := kiosk.NewWebSocketHandler(
		kiosk.Clients{Decode: backend, Records: backend, Assets: backend},
		registry,
		kiosk.Options{
			AllowedOrigin:     cfg.FrontendURL,
			IsDev:             cfg.IsDevelopment(),
			ScanRatePerMinute: cfg.Scan.RatePerMinute,
			Logger:            logger,
		},
	)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	baseHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/kiosk", wsHandler.ServeHTTP)

	// Serve embedded pages (catch-all).
	r.Handle("/*", web.PagesHandler())

	// No WriteTimeout: kiosk websockets are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
