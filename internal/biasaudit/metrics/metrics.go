package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the bias audit module.
type Metrics struct {
	// Audit submissions accepted by the API
	Submissions prometheus.Counter

	// Audit outcomes by terminal status
	Outcomes *prometheus.CounterVec

	// Adverse impact flags raised across all completed audits
	FlagsRaised prometheus.Counter

	// Engine computation latency
	ComputeLatency prometheus.Histogram
}

// New creates a Metrics instance with all bias audit metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equilens_audit_submissions_total",
			Help: "Total audit requests accepted for processing",
		}),

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equilens_audit_outcomes_total",
			Help: "Total audit jobs reaching a terminal status",
		}, []string{"status"}), // status: "completed", "failed"

		FlagsRaised: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equilens_audit_flags_total",
			Help: "Total adverse impact flags raised across completed audits",
		}),

		ComputeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "equilens_audit_compute_duration_seconds",
			Help:    "Duration of the bias audit computation per job",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementSubmissions records an accepted audit request.
func (m *Metrics) IncrementSubmissions() {
	if m != nil {
		m.Submissions.Inc()
	}
}

// IncrementOutcome records a terminal audit status.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status).Inc()
	}
}

// AddFlags records adverse impact flags from one completed audit.
func (m *Metrics) AddFlags(n int) {
	if m != nil && n > 0 {
		m.FlagsRaised.Add(float64(n))
	}
}

// ObserveComputeLatency records the engine computation duration.
func (m *Metrics) ObserveComputeLatency(d time.Duration) {
	if m != nil {
		m.ComputeLatency.Observe(d.Seconds())
	}
}
