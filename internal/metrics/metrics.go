// Package metrics exposes Prometheus instrumentation for ingest, retrieval and narratives.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	IngestResults      *prometheus.CounterVec
	RejectedPredicates *prometheus.CounterVec
	BufferSize         prometheus.Gauge

	SourceAttempts *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec

	NarrativeLookups *prometheus.CounterVec
	NarrativeWrites  *prometheus.CounterVec
}

// New registers all collectors under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "whalewatch"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IngestResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Submitted alert messages by outcome",
		}, []string{"status"}),
		RejectedPredicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rejected_predicates_total",
			Help:      "Grammar rules missing from rejected messages",
		}, []string{"predicate"}),
		BufferSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fallback_buffer_size",
			Help:      "Messages held in the in-memory fallback buffer",
		}),
		SourceAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_attempts_total",
			Help:      "Fallback chain source attempts by outcome",
		}, []string{"source", "outcome"}),
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_duration_seconds",
			Help:      "Fallback chain source latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		NarrativeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "lookups_total",
			Help:      "Narrative cache lookups by result",
		}, []string{"result"}),
		NarrativeWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narrative",
			Name:      "writes_total",
			Help:      "Narrative upserts by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveIngest(status string) {
	if m == nil {
		return
	}
	m.IngestResults.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRejected(predicate string) {
	if m == nil {
		return
	}
	m.RejectedPredicates.WithLabelValues(predicate).Inc()
}

func (m *Metrics) SetBufferSize(n int) {
	if m == nil {
		return
	}
	m.BufferSize.Set(float64(n))
}

func (m *Metrics) ObserveSource(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SourceAttempts.WithLabelValues(source, outcome).Inc()
	m.SourceLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveNarrativeLookup(result string) {
	if m == nil {
		return
	}
	m.NarrativeLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveNarrativeWrite(outcome string) {
	if m == nil {
		return
	}
	m.NarrativeWrites.WithLabelValues(outcome).Inc()
}
