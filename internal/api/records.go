package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/fleetscan/internal/domain"
	"github.com/ashureev/fleetscan/internal/store"
)

type movementRequest struct {
	QRData          string `json:"qr_data"`
	Technician      string `json:"nombre_tecnico"`
	LastMaintenance string `json:"ultimo_mantenimiento"`
	Action          string `json:"accion"`
}

// RegisterMovement records a departure or return for a scanned vehicle.
func (h *Handler) RegisterMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.QRData) == "" || strings.TrimSpace(req.Technician) == "" ||
		strings.TrimSpace(req.LastMaintenance) == "" || strings.TrimSpace(req.Action) == "" {
		Error(w, http.StatusBadRequest, "all fields are required")
		return
	}

	action, err := domain.ParseAction(req.Action)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	maintained, err := domain.ParseMaintenanceTime(req.LastMaintenance)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	m := domain.Movement{
		QRCode:          req.QRData,
		Technician:      strings.TrimSpace(req.Technician),
		LastMaintenance: maintained,
		Action:          action,
		At:              time.Now().UTC(),
	}

	ctx := r.Context()
	err = h.withRetry(ctx, "register_movement", func() error {
		return h.repo.RegisterMovement(ctx, m)
	})
	if errors.Is(err, store.ErrReturnWithoutDeparture) {
		slog.Warn("Return registered without departure", "qr_data", m.QRCode)
		Error(w, http.StatusConflict, "return without departure")
		return
	}
	if err != nil {
		slog.Error("Failed to register movement", "error", err, "qr_data", m.QRCode, "action", m.Action)
		Error(w, http.StatusInternalServerError, "failed to register movement")
		return
	}

	slog.Info("Movement registered", "qr_data", m.QRCode, "action", m.Action, "technician", m.Technician)
	JSON(w, http.StatusCreated, map[string]string{
		"status":         "registered",
		"qr_data":        m.QRCode,
		"nombre_tecnico": m.Technician,
		"accion":         string(m.Action),
	})
}

// ListRecords returns the stored movement records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 1000
	if h.cfg != nil {
		limit = h.cfg.Scan.RecordListLimit
	}

	records, err := h.repo.ListRecords(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list records", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []*domain.Record{}
	}
	JSON(w, http.StatusOK, records)
}

type checklistRequest struct {
	CarNumber          string      `json:"numero_coche"`
	Mileage            interface{} `json:"kilometraje"`
	TireCondition      string      `json:"estado_llantas"`
	RimCondition       string      `json:"estado_rines"`
	ScratchDetails     string      `json:"detalles_raspones"`
	HeadlightCondition string      `json:"estado_faros"`
	OtherNotes         string      `json:"otros_detalles"`
}

// parseMileage accepts an integer as a JSON number or numeric string.
// Null and blank strings mean unknown.
func parseMileage(v interface{}) (*int64, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if m != math.Trunc(m) || m < 0 {
			return nil, fmt.Errorf("kilometraje must be a non-negative integer")
		}
		n := int64(m)
		return &n, nil
	case string:
		s := strings.TrimSpace(m)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("kilometraje must be a non-negative integer")
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("kilometraje must be a non-negative integer")
	}
}

// UpsertChecklist creates or replaces the checklist of a car.
func (h *Handler) UpsertChecklist(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	carNumber := strings.TrimSpace(req.CarNumber)
	if carNumber == "" {
		Error(w, http.StatusBadRequest, "numero_coche is required")
		return
	}
	mileage, err := parseMileage(req.Mileage)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	c := &domain.Checklist{
		CarNumber:          carNumber,
		Mileage:            mileage,
		TireCondition:      req.TireCondition,
		RimCondition:       req.RimCondition,
		ScratchDetails:     req.ScratchDetails,
		HeadlightCondition: req.HeadlightCondition,
		OtherNotes:         req.OtherNotes,
		UpdatedAt:          time.Now().UTC().Truncate(time.Second),
	}

	ctx := r.Context()
	if err := h.withRetry(ctx, "upsert_checklist", func() error {
		return h.repo.UpsertChecklist(ctx, c)
	}); err != nil {
		slog.Error("Failed to update checklist", "error", err, "numero_coche", carNumber)
		Error(w, http.StatusInternalServerError, "failed to update checklist")
		return
	}

	slog.Info("Checklist updated", "numero_coche", carNumber)
	JSON(w, http.StatusOK, map[string]string{
		"status":               "updated",
		"numero_coche":         carNumber,
		"ultima_actualizacion": c.UpdatedAtString(),
	})
}

// ListCars returns every car number with a checklist.
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.repo.ListCarNumbers(r.Context())
	if err != nil {
		slog.Error("Failed to list cars", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list cars")
		return
	}
	if cars == nil {
		cars = []string{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"coches": cars})
}
