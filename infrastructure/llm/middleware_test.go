package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryMiddleware(t *testing.T) {
	serverErr := NewProviderError("fake", ErrorTypeServerError, 503, "down", nil)
	authErr := NewProviderError("fake", ErrorTypeAuthentication, 401, "bad key", nil)

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"succeeds first time", nil, 1, nil},
		{"recovers after transient errors", []error{serverErr, serverErr}, 3, nil},
		{"gives up after max retries", []error{serverErr, serverErr, serverErr, serverErr}, 3, serverErr},
		{"does not retry auth errors", []error{authErr}, 1, authErr},
		{"does not retry open circuit", []error{ErrCircuitOpen}, 1, ErrCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := newFakeCore()
			core.Errors = tt.errs
			wrapped := RetryMiddleware(2, time.Millisecond, 10*time.Millisecond)(core)
			wrapped.(*retryLLM).sleep = noSleep

			resp, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			assert.Equal(t, tt.wantCalls, core.callCount())
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, core.Response, resp)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "attempts")
		})
	}
}

func TestRetryMiddleware_StopsOnCancel(t *testing.T) {
	core := newFakeCore()
	core.Errors = []error{errors.New("transient"), errors.New("transient")}
	wrapped := RetryMiddleware(5, time.Hour, time.Hour)(core)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, _, err := wrapped.DoRequest(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, core.callCount())
}

func TestRetryMiddleware_DelayIsBounded(t *testing.T) {
	r := &retryLLM{baseDelay: 100 * time.Millisecond, maxDelay: time.Second}
	for attempt := 0; attempt < 40; attempt++ {
		d := r.delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	first := r.delay(0)
	assert.GreaterOrEqual(t, first, 75*time.Millisecond)
	assert.LessOrEqual(t, first, 125*time.Millisecond)
}

func TestRateLimitMiddleware(t *testing.T) {
	core := newFakeCore()
	wrapped := RateLimitMiddleware(rate.Every(time.Hour), 1)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, core.callCount())
}

func TestTimeoutMiddleware(t *testing.T) {
	core := newFakeCore()
	core.Delay = time.Second
	wrapped := TimeoutMiddleware(20 * time.Millisecond)(core)

	start := time.Now()
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	fast := newFakeCore()
	_, _, _, err = TimeoutMiddleware(0)(fast).DoRequest(context.Background(), "p", nil)
	assert.NoError(t, err)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }
	fail := errors.New("fail")

	assert.Equal(t, fail, cb.Call(func() error { return fail }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, fail, cb.Call(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A failed probe reopens immediately.
	assert.Equal(t, fail, cb.Call(func() error { return fail }))
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	assert.ErrorIs(t, cb.Call(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerMiddleware_SharedAcrossCores(t *testing.T) {
	mw := CircuitBreakerMiddleware(1, time.Hour)
	a, b := newFakeCore(), newFakeCore()
	a.Errors = []error{errors.New("down")}

	_, _, _, err := mw(a).DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	_, _, _, err = mw(b).DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, b.callCount())
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()
	core := newFakeCore()
	core.Errors = []error{NewProviderError("fake", ErrorTypeRateLimit, 429, "", nil)}
	wrapped := MetricsMiddleware("fake", collector)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, collector.counters[MetricLLMRequests+"|rate_limit"])
	assert.Equal(t, 1.0, collector.counters[MetricLLMRequests+"|success"])
	assert.Equal(t, 10.0, collector.counters[MetricLLMTokens+"|input"])
	assert.Equal(t, 4.0, collector.counters[MetricLLMTokens+"|output"])
	assert.Len(t, collector.histograms[MetricLLMLatency], 2)
	assert.Equal(t, "fake", collector.labels[0]["provider"])
	assert.Equal(t, "fake-model", collector.labels[0]["model"])

	// A nil collector is a pass-through.
	_, _, _, err = MetricsMiddleware("fake", nil)(newFakeCore()).DoRequest(context.Background(), "p", nil)
	assert.NoError(t, err)
}

func TestRequestStatus(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "success", requestStatus(ctx, nil))
	assert.Equal(t, "circuit_open", requestStatus(ctx, ErrCircuitOpen))
	assert.Equal(t, "timeout", requestStatus(ctx, context.DeadlineExceeded))
	assert.Equal(t, "error", requestStatus(ctx, errors.New("x")))
}

func TestTracingMiddleware(t *testing.T) {
	core := newFakeCore()
	wrapped := TracingMiddlewareWithProvider("fake", noop.NewTracerProvider())(core)

	resp, in, out, err := wrapped.DoRequest(context.Background(), "p", map[string]any{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, core.Response, resp)
	assert.Equal(t, 10, in)
	assert.Equal(t, 4, out)
	assert.Equal(t, map[string]any{"k": 1}, core.lastOpts)

	core.Errors = []error{errors.New("service error")}
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	assert.EqualError(t, err, "service error")

	wrapped.SetModel("other")
	assert.Equal(t, "other", core.GetModel())
	assert.Equal(t, "other", TracingMiddleware("fake")(core).GetModel())
}

func TestMiddlewareChain_Concurrent(t *testing.T) {
	core := newFakeCore()
	client := NewClientFromCore(core, nil,
		TracingMiddleware("fake"),
		MetricsMiddleware("fake", newRecordingCollector()),
		RetryMiddleware(1, time.Millisecond, time.Millisecond),
		RateLimitMiddleware(rate.Inf, 1),
		CircuitBreakerMiddleware(5, time.Second),
		TimeoutMiddleware(time.Second),
	)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Complete(context.Background(), "p", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, core.callCount())
}
