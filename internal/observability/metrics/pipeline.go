package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// PipelineMetrics implements ports.PipelineObserver and records the
// outbound resilience and cache signals of the retrieval pipeline.
type PipelineMetrics struct {
	branchTotal       *prometheus.CounterVec
	branchDuration    *prometheus.HistogramVec
	branchIDs         *prometheus.HistogramVec
	synthesisAttempts prometheus.Histogram
	synthesisTotal    *prometheus.CounterVec
	reconciledIDs     *prometheus.HistogramVec
	rerankFallbacks   *prometheus.CounterVec
	finalDocuments    prometheus.Histogram
	pipelineDuration  prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	labels := prometheus.Labels{"service": service}
	m := &PipelineMetrics{
		branchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "branch_total",
			Help: "Retrieval branch completions by outcome.", ConstLabels: labels,
		}, []string{"branch", "outcome"}),
		branchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "branch_duration_seconds",
			Help: "Retrieval branch duration in seconds.", ConstLabels: labels,
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"branch"}),
		branchIDs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "branch_ids",
			Help: "Identifiers produced per branch.", ConstLabels: labels,
			Buckets: []float64{0, 1, 5, 10, 20, 30, 60, 100, 200},
		}, []string{"branch"}),
		synthesisAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "synthesis_attempts",
			Help: "Model attempts per structured query synthesis.", ConstLabels: labels,
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		synthesisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "synthesis_total",
			Help: "Structured query syntheses by source.", ConstLabels: labels,
		}, []string{"source"}),
		reconciledIDs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "reconciled_ids",
			Help: "Identifiers per provenance set.", ConstLabels: labels,
			Buckets: []float64{0, 1, 5, 10, 20, 30, 60, 100, 200},
		}, []string{"set"}),
		rerankFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "rerank_fallback_total",
			Help: "Re-ranking layers served in input order after a failure.", ConstLabels: labels,
		}, []string{"layer"}),
		finalDocuments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "final_documents",
			Help: "Documents in the final result set.", ConstLabels: labels,
			Buckets: []float64{0, 1, 3, 5, 10, 15},
		}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "duration_seconds",
			Help: "Supervisor duration in seconds.", ConstLabels: labels,
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Cache lookups by cache and result.", ConstLabels: labels,
		}, []string{"cache", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "resilience", Name: "circuit_state",
			Help: "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).", ConstLabels: labels,
		}, []string{"operation"}),
	}

	registerer.MustRegister(
		m.branchTotal,
		m.branchDuration,
		m.branchIDs,
		m.synthesisAttempts,
		m.synthesisTotal,
		m.reconciledIDs,
		m.rerankFallbacks,
		m.finalDocuments,
		m.pipelineDuration,
		m.cacheLookups,
		m.breakerState,
	)
	return m
}

func (m *PipelineMetrics) ObserveBranch(branch string, ids int, degraded bool, duration time.Duration) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.branchTotal.WithLabelValues(branch, outcome).Inc()
	m.branchDuration.WithLabelValues(branch).Observe(duration.Seconds())
	m.branchIDs.WithLabelValues(branch).Observe(float64(ids))
}

func (m *PipelineMetrics) ObserveSynthesis(attempts int, fallback bool) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	m.synthesisTotal.WithLabelValues(source).Inc()
	m.synthesisAttempts.Observe(float64(attempts))
}

func (m *PipelineMetrics) ObserveReconciled(common, vectorOnly, structuredOnly int) {
	m.reconciledIDs.WithLabelValues("common").Observe(float64(common))
	m.reconciledIDs.WithLabelValues("vector_only").Observe(float64(vectorOnly))
	m.reconciledIDs.WithLabelValues("structured_only").Observe(float64(structuredOnly))
}

func (m *PipelineMetrics) ObserveRerankFallback(layer string) {
	m.rerankFallbacks.WithLabelValues(layer).Inc()
}

func (m *PipelineMetrics) ObserveFinal(documents int, duration time.Duration) {
	m.finalDocuments.Observe(float64(documents))
	m.pipelineDuration.Observe(duration.Seconds())
}

// CacheLookupHook returns a callback counting lookups of one cache.
func (m *PipelineMetrics) CacheLookupHook(cache string) func(hit bool) {
	return func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.cacheLookups.WithLabelValues(cache, result).Inc()
	}
}

// ObserveCircuitState matches resilience.StateListener.
func (m *PipelineMetrics) ObserveCircuitState(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
