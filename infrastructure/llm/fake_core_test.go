package llm

import (
	"context"
	"sync"
	"time"
)

// fakeCore is a scripted CoreLLM. Errors are returned in order until the
// script runs out, after which Response is returned.
type fakeCore struct {
	mu        sync.Mutex
	model     string
	Response  string
	TokensIn  int
	TokensOut int
	Errors    []error
	Delay     time.Duration

	calls      int
	lastPrompt string
	lastOpts   map[string]any
	lastCtx    context.Context
}

func newFakeCore() *fakeCore {
	return &fakeCore{model: "fake-model", Response: `{"winner":"A"}`, TokensIn: 10, TokensOut: 4}
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt, f.lastOpts, f.lastCtx = prompt, opts, ctx
	var err error
	if len(f.Errors) > 0 {
		err, f.Errors = f.Errors[0], f.Errors[1:]
	}
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", 0, 0, err
	}
	return f.Response, f.TokensIn, f.TokensOut, nil
}

func (f *fakeCore) GetModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeCore) SetModel(m string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = m
}

func (f *fakeCore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingCollector is an in-memory ports.MetricsCollector.
type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	gauges     map[string]float64
	labels     []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}, histograms: map[string][]float64{}, gauges: map[string]float64{}}
}

func (r *recordingCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	r.RecordHistogram(op, d.Seconds(), labels)
}

func (r *recordingCollector) RecordCounter(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric+"|"+labels["status"]+labels["token_type"]] += v
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordGauge(metric string, v float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = v
}

func (r *recordingCollector) RecordHistogram(metric string, v float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], v)
}
