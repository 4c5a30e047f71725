package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetMiddleware_Calls(t *testing.T) {
	collector := newRecordingCollector()
	tracker, err := NewBudgetTracker(Budget{MaxCalls: 2}, collector)
	require.NoError(t, err)
	core := newFakeCore()
	wrapped := BudgetMiddleware(tracker)(core)
	ctx := context.Background()

	for range 2 {
		_, _, _, err := wrapped.DoRequest(ctx, "p", nil)
		require.NoError(t, err)
	}
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "calls", budgetErr.LimitType)
	assert.Equal(t, int64(2), budgetErr.Limit)
	assert.Equal(t, int64(2), budgetErr.Used)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, 2, core.callCount())
	tokens, calls := tracker.Usage()
	assert.Equal(t, int64(28), tokens)
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, 28.0, collector.gauges[MetricBudgetTokensUsed])
	assert.Equal(t, 1.0, collector.counters[MetricBudgetExceeded+"|"])
}

func TestBudgetMiddleware_Tokens(t *testing.T) {
	tracker, err := NewBudgetTracker(Budget{MaxTokens: 20}, nil)
	require.NoError(t, err)
	core := newFakeCore()
	wrapped := BudgetMiddleware(tracker)(core)
	ctx := context.Background()

	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	require.NoError(t, err)
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	require.NoError(t, err, "the limit is checked before the request")

	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "tokens", budgetErr.LimitType)
	assert.Equal(t, int64(28), budgetErr.Used)
	assert.Equal(t, 2, core.callCount())
}

func TestBudgetMiddleware_Unlimited(t *testing.T) {
	tracker, err := NewBudgetTracker(Budget{}, nil)
	require.NoError(t, err)
	wrapped := BudgetMiddleware(tracker)(newFakeCore())
	for range 10 {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	_, calls := tracker.Usage()
	assert.Equal(t, int64(10), calls)
}

func TestBudgetMiddleware_SharedAcrossConcurrentRequests(t *testing.T) {
	tracker, err := NewBudgetTracker(Budget{MaxCalls: 5}, nil)
	require.NoError(t, err)
	core := newFakeCore()
	wrapped := BudgetMiddleware(tracker)(core)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, _, err := wrapped.DoRequest(context.Background(), "p", nil); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, core.callCount())
	assert.Equal(t, 15, failures)
}

func TestBudgetMiddleware_InsideRetryIsNotRetried(t *testing.T) {
	tracker, err := NewBudgetTracker(Budget{MaxCalls: 1}, nil)
	require.NoError(t, err)
	core := newFakeCore()
	core.Errors = []error{NewProviderError("fake", ErrorTypeServerError, 503, "down", nil)}

	client := NewClientFromCore(core, nil,
		RetryMiddleware(3, time.Millisecond, time.Millisecond),
		BudgetMiddleware(tracker))

	_, err = client.Complete(context.Background(), "p", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, 1, core.callCount())
}

func TestNewBudgetTracker_RejectsNegativeLimits(t *testing.T) {
	_, err := NewBudgetTracker(Budget{MaxTokens: -1}, nil)
	assert.Error(t, err)
	_, err = NewBudgetTracker(Budget{MaxCalls: -1}, nil)
	assert.Error(t, err)
}
