package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thurstone/infrastructure/llm"
	"github.com/ahrav/go-thurstone/internal/ports"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetricsWith(reg), reg
}

func TestPrometheusMetrics_SessionCounters(t *testing.T) {
	pm, _ := newTestMetrics(t)
	labels := map[string]string{"method": "thurstone"}

	pm.RecordCounter(ports.MetricSessionsStarted, 1, labels)
	pm.RecordCounter(ports.MetricJudgments, 1, labels)
	pm.RecordCounter(ports.MetricJudgments, 2, labels)
	pm.RecordCounter(ports.MetricSessionsCompleted, 1, nil)
	pm.RecordCounter(ports.MetricJudgeErrors, 1, map[string]string{"judge": "oracle"})

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.sessionsStarted.WithLabelValues("thurstone")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.judgments.WithLabelValues("thurstone")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.sessionsCompleted.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.judgeErrors.WithLabelValues("oracle")))
}

func TestPrometheusMetrics_LLM(t *testing.T) {
	pm, reg := newTestMetrics(t)
	labels := map[string]string{"provider": "openai", "model": "gpt-4o-mini", "status": "success"}

	pm.RecordHistogram(llm.MetricLLMLatency, 0.2, labels)
	pm.RecordCounter(llm.MetricLLMRequests, 1, labels)
	pm.RecordCounter(llm.MetricLLMTokens, 42, map[string]string{
		"provider": "openai", "model": "gpt-4o-mini", "token_type": "input",
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmRequests.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 42.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o-mini", "input")))

	n, err := testutil.GatherAndCount(reg, llm.MetricLLMLatency)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusMetrics_ScoringLatencyAndProgress(t *testing.T) {
	pm, reg := newTestMetrics(t)
	pm.RecordLatency(ports.MetricScoringLatency, 3*time.Millisecond, map[string]string{"method": "win_count"})
	pm.RecordGauge(ports.MetricSessionProgress, 0.5, map[string]string{"method": "thurstone"})

	assert.Equal(t, 0.5, testutil.ToFloat64(pm.sessionProgress.WithLabelValues("thurstone")))

	expected := `
# HELP thurstone_session_progress_ratio Fraction of pairs judged in the most recently updated session.
# TYPE thurstone_session_progress_ratio gauge
thurstone_session_progress_ratio{method="thurstone"} 0.5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), ports.MetricSessionProgress))

	n, err := testutil.GatherAndCount(reg, ports.MetricScoringLatency)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusMetrics_UnknownNames(t *testing.T) {
	pm, _ := newTestMetrics(t)
	pm.RecordCounter("custom_total", 2, nil)
	pm.RecordGauge("queue_depth", 7, nil)
	pm.RecordHistogram("custom_seconds", 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("custom_total")))
	assert.Equal(t, 7.0, testutil.ToFloat64(pm.systemGauges.WithLabelValues("queue_depth")))
}

func TestNewPrometheusMetricsWith_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusMetricsWith(reg)
	assert.Panics(t, func() { NewPrometheusMetricsWith(reg) })
}

type stubCore struct{}

func (stubCore) DoRequest(context.Context, string, map[string]any) (string, int, int, error) {
	return `{"winner":"A"}`, 30, 5, nil
}
func (stubCore) GetModel() string { return "gpt-4o-mini" }
func (stubCore) SetModel(string)  {}

func TestPrometheusMetrics_ThroughLLMMiddleware(t *testing.T) {
	pm, _ := newTestMetrics(t)
	client := llm.NewClientFromCore(stubCore{}, nil, llm.MetricsMiddleware("openai", pm))

	_, err := client.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.llmRequests.WithLabelValues("openai", "gpt-4o-mini", "success")))
	assert.Equal(t, 30.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o-mini", "input")))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.llmTokens.WithLabelValues("openai", "gpt-4o-mini", "output")))
}
