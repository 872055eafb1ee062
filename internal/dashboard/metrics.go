package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records Dashboard API call counts, retries and latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the dashboard collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasetrace_dashboard_requests_total",
				Help: "Total number of Dashboard API requests.",
			},
			[]string{"operation", "status"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leasetrace_dashboard_retries_total",
				Help: "Total number of retried Dashboard API requests.",
			},
			[]string{"operation", "reason"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leasetrace_dashboard_request_duration_seconds",
				Help:    "Dashboard API request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.duration)
	}
	return m
}

func (m *Metrics) observe(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) retry(operation, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation, reason).Inc()
}
