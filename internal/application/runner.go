package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/logging"
	"github.com/ahrav/go-thurstone/internal/ports"
	"github.com/ahrav/go-thurstone/internal/ranking"
)

// DefaultJudgeAttempts is how many times the runner asks the judge about
// one pair before giving up on the session. Only malformed verdicts and
// transient LLM failures are retried.
const DefaultJudgeAttempts = 3

// Runner drives sessions to completion by asking a Judge about every pair.
type Runner struct {
	service       *Service
	judge         ports.Judge
	scorer        ranking.ScorerConfig
	judgeAttempts int
	concurrency   int
	keepSessions  bool
	logger        *zap.Logger
	metrics       ports.MetricsCollector
	tracer        trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScorer selects the scoring model for sessions started by the runner.
func WithScorer(cfg ranking.ScorerConfig) RunnerOption {
	return func(r *Runner) { r.scorer = cfg }
}

// WithJudgeAttempts sets the attempts per pair. Values below 1 are treated
// as 1.
func WithJudgeAttempts(n int) RunnerOption {
	return func(r *Runner) { r.judgeAttempts = max(n, 1) }
}

// WithConcurrency bounds the number of sessions RunAll judges at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) { r.concurrency = max(n, 1) }
}

// WithKeepSessions keeps finished sessions in the store instead of
// deleting them.
func WithKeepSessions(keep bool) RunnerOption {
	return func(r *Runner) { r.keepSessions = keep }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.OrNop(l) }
}

// WithRunnerMetrics sets the metrics collector.
func WithRunnerMetrics(m ports.MetricsCollector) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunnerTracerProvider sets the tracer provider for run spans.
func WithRunnerTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// NewRunner creates a Runner that records judgments through service.
func NewRunner(service *Service, judge ports.Judge, opts ...RunnerOption) *Runner {
	r := &Runner{
		service:       service,
		judge:         judge,
		judgeAttempts: DefaultJudgeAttempts,
		concurrency:   1,
		logger:        zap.NewNop(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts a session for items, judges every pair and returns the
// ranking.
func (r *Runner) Run(ctx context.Context, items []domain.Item) (domain.RankedResult, error) {
	ctx, span := r.tracer.Start(ctx, "ranking.run",
		trace.WithAttributes(
			attribute.Int("ranking.items", len(items)),
			attribute.String("ranking.judge", r.judge.Name()),
		))
	defer span.End()

	id, err := r.service.Start(ctx, items, r.scorer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.RankedResult{}, err
	}
	span.SetAttributes(attribute.String("ranking.session_id", id))

	result, err := r.Resume(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.RankedResult{}, err
	}
	if !r.keepSessions {
		if err := r.service.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to delete finished session", zap.String("session_id", id), zap.Error(err))
		}
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// Resume judges the remaining pairs of an existing session and returns
// its ranking.
func (r *Runner) Resume(ctx context.Context, id string) (domain.RankedResult, error) {
	reporter, _ := r.judge.(ports.ProgressReporter)
	for {
		if err := ctx.Err(); err != nil {
			return domain.RankedResult{}, err
		}
		cur, ok, err := r.service.Current(ctx, id)
		if err != nil {
			return domain.RankedResult{}, err
		}
		if !ok {
			break
		}
		if reporter != nil {
			reporter.ReportProgress(cur.Done, cur.Total)
		}

		j, err := r.compare(ctx, id, cur)
		if err != nil {
			return domain.RankedResult{}, err
		}
		if err := r.service.JudgeAt(ctx, id, cur.Index, j.Winner); err != nil {
			return domain.RankedResult{}, fmt.Errorf("judge %s returned an unusable verdict: %w", r.judge.Name(), err)
		}
	}
	return r.service.Result(ctx, id)
}

func (r *Runner) compare(ctx context.Context, id string, cur CurrentPair) (domain.Judgment, error) {
	var lastErr error
	for attempt := 1; attempt <= r.judgeAttempts; attempt++ {
		j, err := r.judge.Compare(ctx, cur.A, cur.B)
		if err == nil {
			return j, nil
		}
		if ctx.Err() != nil || !retryableJudgeError(err) {
			return domain.Judgment{}, fmt.Errorf("pair %d: judge %s: %w", cur.Index, r.judge.Name(), err)
		}
		lastErr = err
		if r.metrics != nil {
			r.metrics.RecordCounter(ports.MetricJudgeErrors, 1, map[string]string{"judge": r.judge.Name()})
		}
		r.logger.Warn("judge failed",
			zap.String("session_id", id),
			zap.String("judge", r.judge.Name()),
			zap.Int("pair", cur.Index),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.judgeAttempts),
			zap.Error(err))
	}
	return domain.Judgment{}, fmt.Errorf("pair %d: judge %s failed after %d attempts: %w",
		cur.Index, r.judge.Name(), r.judgeAttempts, lastErr)
}

// retryableJudgeError reports whether asking the judge again may help:
// malformed verdicts and transient LLM failures.
func retryableJudgeError(err error) bool {
	if errors.Is(err, ports.ErrInvalidResponse) {
		return true
	}
	var llmErr *ports.LLMError
	return errors.As(err, &llmErr) && llmErr.IsRetryable()
}

// RunAll ranks independent batches concurrently, at most WithConcurrency
// at a time. Results are in batch order. The first failure cancels the
// remaining batches.
func (r *Runner) RunAll(ctx context.Context, batches [][]domain.Item) ([]domain.RankedResult, error) {
	results := make([]domain.RankedResult, len(batches))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, items := range batches {
		g.Go(func() error {
			res, err := r.Run(ctx, items)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
