package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExtractionRequests  *prometheus.CounterVec
	ExtractionDuration  *prometheus.HistogramVec
	TokensCharged       prometheus.Counter
	UsageRecords        *prometheus.CounterVec
	UsageRecordFailures *prometheus.CounterVec
	RateLimitRejections prometheus.Counter
	AuthFailures        prometheus.Counter
	CircuitTransitions  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExtractionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nid_extraction_requests_total",
			Help: "Extraction requests by outcome",
		}, []string{"outcome"}),
		ExtractionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nid_extraction_duration_seconds",
			Help:    "Time spent in the extraction pipeline",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		TokensCharged: f.NewCounter(prometheus.CounterOpts{
			Name: "nid_tokens_charged_total",
			Help: "Tokens deducted from principal balances",
		}),
		UsageRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nid_usage_records_total",
			Help: "Usage records persisted, by client kind",
		}, []string{"client_kind"}),
		UsageRecordFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nid_usage_record_failures_total",
			Help: "Usage records that could not be written, by sink",
		}, []string{"sink"}),
		RateLimitRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "nid_ratelimit_rejections_total",
			Help: "Requests rejected by the per-principal rate limit",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "nid_apikey_auth_failures_total",
			Help: "API key authentication failures",
		}),
		CircuitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nid_circuit_transitions_total",
			Help: "Circuit breaker state changes",
		}, []string{"name", "state"}),
	}
}

func (m *Metrics) ObserveExtraction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionRequests.WithLabelValues(outcome).Inc()
	m.ExtractionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) AddTokensCharged(n int64) {
	if m == nil {
		return
	}
	m.TokensCharged.Add(float64(n))
}

func (m *Metrics) IncUsageRecorded(clientKind string) {
	if m == nil {
		return
	}
	m.UsageRecords.WithLabelValues(clientKind).Inc()
}

func (m *Metrics) IncUsageRecordFailure(sink string) {
	if m == nil {
		return
	}
	m.UsageRecordFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncRateLimitRejection() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

func (m *Metrics) IncAuthFailure() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) IncCircuitTransition(name, state string) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(name, state).Inc()
}
