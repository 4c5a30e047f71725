// Package metrics provides a Prometheus implementation of
// ports.MetricsCollector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-thurstone/infrastructure/llm"
	"github.com/ahrav/go-thurstone/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

const unknown = "unknown"

// PrometheusMetrics routes the metric names emitted by the ranking service,
// the runner and the LLM middleware to dedicated Prometheus vectors. Names
// it does not know land in generic per-name vectors.
type PrometheusMetrics struct {
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	judgments         *prometheus.CounterVec
	judgeErrors       *prometheus.CounterVec
	scoringLatency    *prometheus.HistogramVec
	sessionProgress   *prometheus.GaugeVec

	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	operationCounter *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics registers all vectors in the default registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWith(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWith registers all vectors in reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewPrometheusMetricsWith(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: ports.MetricSessionsStarted,
			Help: "Ranking sessions started.",
		}, []string{"method"}),
		sessionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: ports.MetricSessionsCompleted,
			Help: "Ranking sessions whose every pair has been judged.",
		}, []string{"method"}),
		judgments: f.NewCounterVec(prometheus.CounterOpts{
			Name: ports.MetricJudgments,
			Help: "Pairwise judgments recorded.",
		}, []string{"method"}),
		judgeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: ports.MetricJudgeErrors,
			Help: "Failed judge attempts.",
		}, []string{"judge"}),
		scoringLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    ports.MetricScoringLatency,
			Help:    "Time to score a completed session.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		sessionProgress: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricSessionProgress,
			Help: "Fraction of pairs judged in the most recently updated session.",
		}, []string{"method"}),

		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    llm.MetricLLMLatency,
			Help:    "LLM request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model", "status"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: llm.MetricLLMRequests,
			Help: "LLM requests by outcome.",
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: llm.MetricLLMTokens,
			Help: "LLM tokens consumed.",
		}, []string{"provider", "model", "token_type"}),

		operationCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thurstone_operations_total",
			Help: "Counters without a dedicated vector, by metric name.",
		}, []string{"metric"}),
		operationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thurstone_operation_duration_seconds",
			Help:    "Observations without a dedicated histogram, by metric name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"metric"}),
		systemGauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thurstone_system_state",
			Help: "Gauges without a dedicated vector, by metric name.",
		}, []string{"metric"}),
	}
}

func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknown
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.RecordHistogram(operation, duration.Seconds(), labels)
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricSessionsStarted:
		pm.sessionsStarted.WithLabelValues(label(labels, "method")).Add(value)
	case ports.MetricSessionsCompleted:
		pm.sessionsCompleted.WithLabelValues(label(labels, "method")).Add(value)
	case ports.MetricJudgments:
		pm.judgments.WithLabelValues(label(labels, "method")).Add(value)
	case ports.MetricJudgeErrors:
		pm.judgeErrors.WithLabelValues(label(labels, "judge")).Add(value)
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "token_type"),
		).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricSessionProgress:
		pm.sessionProgress.WithLabelValues(label(labels, "method")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricScoringLatency:
		pm.scoringLatency.WithLabelValues(label(labels, "method")).Observe(value)
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}
