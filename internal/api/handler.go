// Package api provides HTTP handlers for the fleetscan backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/fleetscan/internal/config"
	"github.com/ashureev/fleetscan/internal/decoder"
	"github.com/ashureev/fleetscan/internal/shared"
	"github.com/ashureev/fleetscan/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler provides common handler utilities.
type Handler struct {
	repo    store.Repository
	decoder decoder.Decoder
	cfg     *config.Config
}

// NewHandler creates a new Handler with common dependencies.
// A nil cfg falls back to built-in limits.
func NewHandler(repo store.Repository, dec decoder.Decoder, cfg *config.Config) *Handler {
	if dec == nil {
		dec = decoder.NewQRDecoder()
	}
	return &Handler{repo: repo, decoder: dec, cfg: cfg}
}

// RegisterRoutes registers the scan, record and checklist routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/escaneo_qr", h.DecodeQR)
	r.Post("/verificar_qr", h.VerifyQR)
	r.Get("/get_car_details/{numero_coche}", h.GetCarDetails)

	r.Route("/api", func(r chi.Router) {
		r.Get("/registros", h.ListRecords)
		r.Post("/registros", h.RegisterMovement)
		r.Get("/checklist", h.ListCars)
		r.Post("/checklist", h.UpsertChecklist)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON body bounded by the configured image limit.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := int64(10 << 20)
	if h.cfg != nil {
		limit = h.cfg.Scan.MaxImageBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return json.NewDecoder(r.Body).Decode(v)
}

// isTooLarge reports whether err came from an exceeded body limit.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// withRetry runs op with exponential backoff while it fails with a
// retryable database write conflict.
func (h *Handler) withRetry(ctx context.Context, name string, op func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond
	if h.cfg != nil {
		maxRetries = h.cfg.Retry.DatabaseMaxRetries
		baseDelay = h.cfg.Retry.DatabaseRetryBaseDelay
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil || !shared.IsConflictError(err) || i == maxRetries-1 {
			return err
		}

		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
