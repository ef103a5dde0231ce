package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/fleetscan/internal/config"
	"github.com/ashureev/fleetscan/internal/metrics"
	"github.com/ashureev/fleetscan/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health check and metrics endpoints.
type HealthHandler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, cfg *config.Config) *HealthHandler {
	return &HealthHandler{repo: repo, cfg: cfg}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthCheckTimeout := 5 * time.Second
	if h.cfg != nil {
		healthCheckTimeout = h.cfg.Timeout.HealthCheck
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "database": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check and metrics routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}
