package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the crisis-detection engine.
type EngineMetrics struct {
	classificationsTotal *prometheus.CounterVec
	escalationsTotal     *prometheus.CounterVec
	auditFailuresTotal   prometheus.Counter
	turnLatency          *prometheus.HistogramVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		classificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctuary",
			Subsystem: "engine",
			Name:      "classifications_total",
			Help:      "Total utterance classifications by risk level",
		}, []string{"level"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctuary",
			Subsystem: "engine",
			Name:      "escalations_total",
			Help:      "Total crisis escalation transitions by kind",
		}, []string{"kind"}),
		auditFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sanctuary",
			Subsystem: "engine",
			Name:      "audit_flush_failures_total",
			Help:      "Audit events that failed to enqueue or were dropped from the retry buffer",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sanctuary",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full utterance turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"level"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.classificationsTotal, m.escalationsTotal, m.auditFailuresTotal, m.turnLatency)
	return m
}

func (m *EngineMetrics) ObserveClassification(level string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(level).Inc()
}

func (m *EngineMetrics) ObserveEscalation(kind string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailuresTotal.Inc()
}

func (m *EngineMetrics) ObserveTurnLatency(level string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(level).Observe(seconds)
}
