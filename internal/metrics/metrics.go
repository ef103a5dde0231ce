// Package metrics exposes Prometheus instrumentation for scans and lookups.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetscan"

var (
	scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Scan flows by resolved outcome.",
	}, []string{"outcome"})

	lookupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookups_total",
		Help:      "Identifier lookups by resolved outcome.",
	}, []string{"outcome"})

	decodeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_requests_total",
		Help:      "Decode requests served by the backend, by result.",
	}, []string{"result"})

	kioskSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "kiosk_sessions_active",
		Help:      "Number of connected kiosk websocket sessions.",
	})
)

// ObserveScan counts a finished scan flow.
func ObserveScan(outcome string) {
	scanOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveLookup counts a finished identifier lookup.
func ObserveLookup(outcome string) {
	lookupOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveDecode counts a decode request handled by the backend.
func ObserveDecode(result string) {
	decodeResults.WithLabelValues(result).Inc()
}

// SetKioskSessions records the number of active kiosk sessions.
func SetKioskSessions(n int) {
	kioskSessions.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
