// Package metrics exposes Prometheus collectors for HTTP traffic and for the
// scheduling, ward and prescription engines.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	appointmentsBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_appointments_booked_total",
			Help: "Appointments created, by type",
		},
		[]string{"type"},
	)

	slotSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_slot_searches_total",
			Help: "Optimal slot searches, by outcome",
		},
		[]string{"outcome"},
	)

	wardAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_ward_allocations_total",
			Help: "Ward allocation attempts, by outcome",
		},
		[]string{"outcome"},
	)

	transferSuggestions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medilink_ward_transfer_suggestions",
			Help: "Transfer suggestions produced by the most recent scan",
		},
	)

	prescriptionWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_prescription_warnings_total",
			Help: "Safety warnings raised while validating prescriptions",
		},
		[]string{"kind", "severity"},
	)

	vitalAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_vital_alerts_total",
			Help: "Abnormal vital readings, by reading type",
		},
		[]string{"type"},
	)

	stockAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medilink_stock_alerts_total",
			Help: "Inventory items crossing into low-stock or out-of-stock",
		},
		[]string{"status"},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of acquired database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the route template
// (c.Path()) rather than the raw URL, keeping label cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func RecordAppointmentBooked(apptType string) {
	appointmentsBooked.WithLabelValues(apptType).Inc()
}

// RecordSlotSearch records a slot search outcome: found, no_availability or no_slot.
func RecordSlotSearch(outcome string) {
	slotSearches.WithLabelValues(outcome).Inc()
}

// RecordWardAllocation records an allocation outcome: allocated, no_ward or full.
func RecordWardAllocation(outcome string) {
	wardAllocations.WithLabelValues(outcome).Inc()
}

func RecordTransferSuggestions(n int) {
	transferSuggestions.Set(float64(n))
}

func RecordPrescriptionWarning(kind, severity string) {
	prescriptionWarnings.WithLabelValues(kind, severity).Inc()
}

func RecordVitalAlert(readingType string) {
	vitalAlerts.WithLabelValues(readingType).Inc()
}

func RecordStockAlert(status string) {
	stockAlerts.WithLabelValues(status).Inc()
}

func RecordDBConnections(count int32) {
	dbConnectionsActive.Set(float64(count))
}
