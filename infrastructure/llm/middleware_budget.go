package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-thurstone/internal/ports"
)

// Metric names emitted by BudgetMiddleware.
const (
	MetricBudgetTokensUsed = "llm_budget_tokens_used"
	MetricBudgetCallsUsed  = "llm_budget_calls_used"
	MetricBudgetExceeded   = "llm_budget_exceeded_total"
)

// Usage fractions at which a span event is recorded.
const (
	budgetWarningThreshold  = 0.8
	budgetCriticalThreshold = 0.9
)

// ErrBudgetExceeded is wrapped by every *BudgetExceededError.
var ErrBudgetExceeded = errors.New("llm budget exceeded")

// Budget caps the LLM usage of a run. A full round robin over n items costs
// n(n-1)/2 calls, twice that with position swapping. Zero fields are
// unlimited.
type Budget struct {
	MaxTokens int64
	MaxCalls  int64
}

// BudgetExceededError reports which limit stopped a request.
type BudgetExceededError struct {
	// LimitType is "tokens" or "calls".
	LimitType string
	Limit     int64
	Used      int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("llm budget exceeded: %s used %d of %d", e.LimitType, e.Used, e.Limit)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// BudgetTracker accumulates usage across every request that passes through
// its middleware. Share one tracker between clients to cap a whole run.
type BudgetTracker struct {
	budget  Budget
	tokens  atomic.Int64
	calls   atomic.Int64
	metrics ports.MetricsCollector
}

// NewBudgetTracker creates a tracker enforcing budget. metrics may be nil.
func NewBudgetTracker(budget Budget, metrics ports.MetricsCollector) (*BudgetTracker, error) {
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("budget: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("budget: max_calls cannot be negative, got %d", budget.MaxCalls)
	}
	return &BudgetTracker{budget: budget, metrics: metrics}, nil
}

// Usage returns the tokens consumed and calls made so far.
func (b *BudgetTracker) Usage() (tokens, calls int64) {
	return b.tokens.Load(), b.calls.Load()
}

// reserve claims one call, failing when either limit is already reached.
// Tokens are only known after the response, so the token check uses the
// usage of completed requests.
func (b *BudgetTracker) reserve() error {
	calls := b.calls.Add(1)
	if b.budget.MaxCalls > 0 && calls > b.budget.MaxCalls {
		b.calls.Add(-1)
		return b.exceeded("calls", b.budget.MaxCalls, calls-1)
	}
	if tokens := b.tokens.Load(); b.budget.MaxTokens > 0 && tokens >= b.budget.MaxTokens {
		b.calls.Add(-1)
		return b.exceeded("tokens", b.budget.MaxTokens, tokens)
	}
	return nil
}

func (b *BudgetTracker) exceeded(limitType string, limit, used int64) error {
	if b.metrics != nil {
		b.metrics.RecordCounter(MetricBudgetExceeded, 1, map[string]string{"limit_type": limitType})
	}
	return &BudgetExceededError{LimitType: limitType, Limit: limit, Used: used}
}

func (b *BudgetTracker) record(span trace.Span, tokensIn, tokensOut int) {
	tokens := b.tokens.Add(int64(tokensIn + tokensOut))
	calls := b.calls.Load()

	span.SetAttributes(
		attribute.Int64("budget.tokens_used", tokens),
		attribute.Int64("budget.calls_made", calls),
	)
	thresholdEvent(span, "tokens", tokens, b.budget.MaxTokens)
	thresholdEvent(span, "calls", calls, b.budget.MaxCalls)

	if b.metrics != nil {
		b.metrics.RecordGauge(MetricBudgetTokensUsed, float64(tokens), nil)
		b.metrics.RecordGauge(MetricBudgetCallsUsed, float64(calls), nil)
	}
}

// thresholdEvent marks the span once usage crosses the warning or critical
// fraction of limit.
func thresholdEvent(span trace.Span, resource string, used, limit int64) {
	if limit <= 0 {
		return
	}
	frac := float64(used) / float64(limit)
	name := ""
	switch {
	case frac >= budgetCriticalThreshold:
		name = "budget.threshold.critical"
	case frac >= budgetWarningThreshold:
		name = "budget.threshold.warning"
	default:
		return
	}
	span.AddEvent(name, trace.WithAttributes(
		attribute.String("resource_type", resource),
		attribute.Float64("usage_percentage", frac*100),
	))
}

type budgetLLM struct {
	next    CoreLLM
	tracker *BudgetTracker
}

// BudgetMiddleware rejects requests with a *BudgetExceededError once the
// tracker's limits are reached. Place it inside RetryMiddleware so every
// attempt is counted.
func BudgetMiddleware(tracker *BudgetTracker) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &budgetLLM{next: next, tracker: tracker}
	}
}

func (b *budgetLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	span := trace.SpanFromContext(ctx)
	if err := b.tracker.reserve(); err != nil {
		span.AddEvent("budget.exceeded", trace.WithAttributes(attribute.String("error", err.Error())))
		return "", 0, 0, err
	}

	response, in, out, err := b.next.DoRequest(ctx, prompt, opts)
	b.tracker.record(span, in, out)
	return response, in, out, err
}

func (b *budgetLLM) GetModel() string  { return b.next.GetModel() }
func (b *budgetLLM) SetModel(m string) { b.next.SetModel(m) }
