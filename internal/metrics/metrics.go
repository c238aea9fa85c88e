package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the okr client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// API transport metrics
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
	APIErrors   *prometheus.CounterVec

	// Session lifecycle
	SessionTransitions *prometheus.CounterVec

	// Domain store caches
	CacheItems     *prometheus.GaugeVec
	CacheFallbacks *prometheus.CounterVec

	// Route guard decisions
	GuardDecisions *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status_class"},
		),
		APIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okr_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "route"},
		),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_api_errors_total",
				Help: "Total number of failed API requests by error kind",
			},
			[]string{"route", "kind"},
		),

		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_session_transitions_total",
				Help: "Total number of session phase transitions",
			},
			[]string{"phase"},
		),

		CacheItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "okr_cache_items",
				Help: "Number of records held in each domain cache",
			},
			[]string{"resource"},
		),
		CacheFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_cache_fallbacks_total",
				Help: "Total number of reads served from stale or fallback data",
			},
			[]string{"resource", "source"},
		),

		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_guard_decisions_total",
				Help: "Total number of route guard decisions",
			},
			[]string{"route", "decision"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okr_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// ObserveRequest records one completed API call. status is 0 for transport failures.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.APIDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAPIError records a failed API call by error kind.
func (m *Metrics) ObserveAPIError(route, kind string) {
	if m == nil {
		return
	}
	m.APIErrors.WithLabelValues(route, kind).Inc()
}

// ObserveSessionPhase records a session entering phase.
func (m *Metrics) ObserveSessionPhase(phase string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(phase).Inc()
}

// SetCacheSize records the number of cached records for resource.
func (m *Metrics) SetCacheSize(resource string, n int) {
	if m == nil {
		return
	}
	m.CacheItems.WithLabelValues(resource).Set(float64(n))
}

// ObserveFallback records a degraded read for resource.
func (m *Metrics) ObserveFallback(resource, source string) {
	if m == nil {
		return
	}
	m.CacheFallbacks.WithLabelValues(resource, source).Inc()
}

// ObserveGuard records a route guard decision.
func (m *Metrics) ObserveGuard(route, decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(route, decision).Inc()
}

// ObserveError records a structured error code.
func (m *Metrics) ObserveError(code, component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}
