package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports records as Prometheus series. It also counts retries and
// cache lookups when wired to those layers. It is safe for concurrent use.
type Metrics struct {
	callsTotal      *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	responseBytes   *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	multiCallsTotal *prometheus.CounterVec
}

var _ Sink = (*Metrics)(nil)

// NewMetrics registers the collectors on reg, or on the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		callsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outcall_calls_total",
				Help: "Total number of calls by provider, method and outcome",
			},
			[]string{"provider", "method", "outcome"},
		),
		callDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outcall_call_duration_seconds",
				Help:    "Duration of calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "method"},
		),
		responseBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outcall_response_bytes",
				Help:    "Size of successful responses in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"provider", "method"},
		),
		retriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outcall_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"provider", "outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outcall_cache_lookups_total",
				Help: "Total number of response cache lookups by result",
			},
			[]string{"provider", "method", "result"},
		),
		multiCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outcall_multi_calls_total",
				Help: "Total number of multi-provider calls by reduction result",
			},
			[]string{"method", "result"},
		),
	}
}

func (m *Metrics) Record(r Record) {
	m.callsTotal.WithLabelValues(r.Provider, r.Method, r.Label).Inc()
	m.callDuration.WithLabelValues(r.Provider, r.Method).Observe(r.Duration().Seconds())
	if r.OK() {
		m.responseBytes.WithLabelValues(r.Provider, r.Method).Observe(float64(r.BytesIn))
	}
}

// RecordRetry counts one re-issued attempt; outcome is the label of the failure that caused it.
func (m *Metrics) RecordRetry(provider, outcome string) {
	m.retriesTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordCacheLookup counts a response cache hit or miss.
func (m *Metrics) RecordCacheLookup(provider, method string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(provider, method, result).Inc()
}

// RecordMultiCall counts a reduced multi-provider call; result is "ok" or a reduction error kind.
func (m *Metrics) RecordMultiCall(method, result string) {
	m.multiCallsTotal.WithLabelValues(method, result).Inc()
}
