package api

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ashureev/fleetscan/internal/decoder"
	"github.com/ashureev/fleetscan/internal/metrics"
	"github.com/ashureev/fleetscan/internal/workflow"
	"github.com/go-chi/chi/v5"
)

type decodeRequest struct {
	Image string `json:"image"`
}

// DecodeQR finds a QR code in a base64 image.
func (h *Handler) DecodeQR(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		metrics.ObserveDecode("rejected")
		if isTooLarge(err) {
			Error(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload, _ := workflow.StripDataURI(strings.TrimSpace(req.Image))
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		metrics.ObserveDecode("rejected")
		Error(w, http.StatusBadRequest, "image is not valid base64")
		return
	}

	qrData, found, err := decoder.DecodeBytes(h.decoder, data)
	if err != nil {
		if errors.Is(err, decoder.ErrInvalidImage) {
			metrics.ObserveDecode("rejected")
			Error(w, http.StatusBadRequest, "image could not be decoded")
			return
		}
		slog.Error("QR decode failed", "error", err)
		metrics.ObserveDecode("error")
		Error(w, http.StatusInternalServerError, "decode failed")
		return
	}

	if !found {
		metrics.ObserveDecode("no_code")
		JSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "no QR code detected",
		})
		return
	}

	metrics.ObserveDecode("found")
	slog.Info("QR decoded", "qr_data", qrData)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"qr_data": qrData,
	})
}

type verifyRequest struct {
	QRData *string `json:"qr_data"`
}

// VerifyQR reports whether a maintenance record exists for a QR code.
func (h *Handler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.decodeBody(w, r, &req); err != nil || req.QRData == nil {
		Error(w, http.StatusBadRequest, "qr_data is required")
		return
	}

	rec, err := h.repo.GetRecordByQR(r.Context(), *req.QRData)
	if err != nil {
		slog.Error("Failed to verify QR", "error", err, "qr_data", *req.QRData)
		Error(w, http.StatusInternalServerError, "failed to verify QR")
		return
	}
	if rec == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"exists":               true,
		"nombre_tecnico":       rec.Technician,
		"ultimo_mantenimiento": rec.LastMaintenance,
	})
}

// GetCarDetails returns the checklist of one car with every field as a string.
func (h *Handler) GetCarDetails(w http.ResponseWriter, r *http.Request) {
	carNumber := chi.URLParam(r, "numero_coche")
	// chi matches on RawPath when the request escaped a reserved byte such as "/".
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(carNumber)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid car number")
			return
		}
		carNumber = unescaped
	}

	c, err := h.repo.GetChecklist(r.Context(), carNumber)
	if err != nil {
		slog.Error("Failed to get car details", "error", err, "numero_coche", carNumber)
		Error(w, http.StatusInternalServerError, "failed to get car details")
		return
	}
	if c == nil {
		Error(w, http.StatusNotFound, "car not found")
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"numero_coche":         c.CarNumber,
		"kilometraje":          c.MileageString(),
		"estado_llantas":       c.TireCondition,
		"estado_rines":         c.RimCondition,
		"detalles_raspones":    c.ScratchDetails,
		"estado_faros":         c.HeadlightCondition,
		"otros_detalles":       c.OtherNotes,
		"ultima_actualizacion": c.UpdatedAtString(),
	})
}
