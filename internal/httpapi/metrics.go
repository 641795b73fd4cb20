package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine and server update.
type Metrics struct {
	CycleDuration  prometheus.Histogram
	CycleErrors    prometheus.Counter
	ActiveSensors  prometheus.Gauge
	FetchErrors    *prometheus.CounterVec
	EventsEmitted  *prometheus.CounterVec
	PersistFailure prometheus.Counter
}

// NewMetrics constructs and registers every collector against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_cycle_duration_seconds",
			Help:    "Duration of one poll cycle across every sensor.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_cycle_errors_total",
			Help: "Total number of poll cycles canceled or failed outright.",
		}),
		ActiveSensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_active_sensors",
			Help: "Number of sensors with at least one resampled row in the current cycle.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_fetch_errors_total",
			Help: "Total transient fetch failures by sensor.",
		}, []string{"sensor"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_events_total",
			Help: "Total daily-top events emitted by verdict type.",
		}, []string{"type"}),
		PersistFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_persist_failures_total",
			Help: "Total snapshot publish failures.",
		}),
	}

	prometheus.MustRegister(
		m.CycleDuration,
		m.CycleErrors,
		m.ActiveSensors,
		m.FetchErrors,
		m.EventsEmitted,
		m.PersistFailure,
	)

	return m
}

// Handler exposes the standard /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
