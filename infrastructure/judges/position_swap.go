package judges

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ports"
)

var (
	_ ports.Judge            = (*PositionSwapJudge)(nil)
	_ ports.ProgressReporter = (*PositionSwapJudge)(nil)
)

const positionSwapTracer = "github.com/ahrav/go-thurstone/infrastructure/judges/position-swap"

// PositionSwapJudge mitigates positional bias by asking the wrapped judge
// twice, once in each presentation order. When the two verdicts agree the
// winner stands with the mean confidence. When they disagree the verdict
// with the higher confidence wins, and a tie goes to the first
// presentation. It is stateless and safe for concurrent use if the wrapped
// judge is.
type PositionSwapJudge struct {
	next   ports.Judge
	tracer trace.Tracer
}

// PositionSwapOption configures a PositionSwapJudge.
type PositionSwapOption func(*PositionSwapJudge)

// WithSwapTracerProvider sets the tracer provider for the decorator's
// spans.
func WithSwapTracerProvider(tp trace.TracerProvider) PositionSwapOption {
	return func(p *PositionSwapJudge) { p.tracer = tp.Tracer(positionSwapTracer) }
}

// NewPositionSwapJudge wraps next. It panics if next is nil.
func NewPositionSwapJudge(next ports.Judge, opts ...PositionSwapOption) *PositionSwapJudge {
	if next == nil {
		panic("position swap judge: next judge is required")
	}
	p := &PositionSwapJudge{next: next, tracer: otel.Tracer(positionSwapTracer)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements ports.Judge.
func (p *PositionSwapJudge) Name() string { return "position_swap(" + p.next.Name() + ")" }

// ReportProgress forwards progress to the wrapped judge when it wants it.
func (p *PositionSwapJudge) ReportProgress(done, total int) {
	if r, ok := p.next.(ports.ProgressReporter); ok {
		r.ReportProgress(done, total)
	}
}

// Compare implements ports.Judge.
func (p *PositionSwapJudge) Compare(ctx context.Context, a, b domain.Item) (domain.Judgment, error) {
	ctx, span := p.tracer.Start(ctx, "PositionSwapJudge.Compare", trace.WithAttributes(
		attribute.String("judge.name", p.next.Name()),
		attribute.String("judge.type", "position_swap"),
		attribute.String("pair.a", a.ID),
		attribute.String("pair.b", b.ID),
	))
	defer span.End()

	first, err := p.run(ctx, 0, a, b)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, fmt.Errorf("first execution failed: %w", err)
	}
	second, err := p.run(ctx, 1, b, a)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, fmt.Errorf("second execution failed: %w", err)
	}

	result, agreed := combine(first, second)
	span.AddEvent("position_swap_completed", trace.WithAttributes(
		attribute.Bool("agreed", agreed),
		attribute.Int("winner", result.Winner),
	))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (p *PositionSwapJudge) run(ctx context.Context, runIndex int, a, b domain.Item) (domain.Judgment, error) {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("PositionSwapJudge.Run%d", runIndex), trace.WithAttributes(
		attribute.Int("run_index", runIndex),
		attribute.StringSlice("presentation_order", []string{a.ID, b.ID}),
	))
	defer span.End()

	j, err := p.next.Compare(ctx, a, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}
	if j.Winner != a.Index && j.Winner != b.Index {
		err := fmt.Errorf("%w: winner %d is not in pair (%d,%d)", ports.ErrInvalidResponse, j.Winner, a.Index, b.Index)
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}
	return j, nil
}

// combine merges the verdicts of the original and swapped presentations.
func combine(first, second domain.Judgment) (domain.Judgment, bool) {
	if first.Winner == second.Winner {
		return domain.Judgment{
			Winner:     first.Winner,
			Confidence: (first.Confidence + second.Confidence) / 2,
			Reasoning:  first.Reasoning,
		}, true
	}
	if second.Confidence > first.Confidence {
		return second, false
	}
	return first, false
}
