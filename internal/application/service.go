package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/logging"
	"github.com/ahrav/go-thurstone/internal/ports"
	"github.com/ahrav/go-thurstone/internal/ranking"
)

const tracerName = "github.com/ahrav/go-thurstone/internal/application"

// Service manages ranking sessions keyed by session ID. Every operation
// loads the session from the store, applies the change and saves it back
// under a per-session lock, so a session may be judged from several
// goroutines while distinct sessions proceed in parallel.
type Service struct {
	store     ports.SessionStore
	scheduler ranking.SchedulerConfig
	logger    *zap.Logger
	metrics   ports.MetricsCollector
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	locks     *keyedMutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTracerProvider sets the tracer provider used for scoring spans.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithSchedulerConfig sets how new sessions order their pairs.
func WithSchedulerConfig(cfg ranking.SchedulerConfig) ServiceOption {
	return func(s *Service) { s.scheduler = cfg }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random UUID session IDs.
func WithIDGenerator(f func() string) ServiceOption {
	return func(s *Service) { s.newID = f }
}

// NewService creates a Service persisting sessions in store.
func NewService(store ports.SessionStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentPair is the comparison a session is waiting for.
type CurrentPair struct {
	// Index is the position of the pair in the session's schedule. Pass it
	// to JudgeAt to guard against answering a pair twice.
	Index int
	A, B  domain.Item
	Done  int
	Total int
}

// Start creates a session ranking the active items of items. Inactive items
// are dropped and the rest are re-indexed in input order.
func (s *Service) Start(ctx context.Context, items []domain.Item, scorer ranking.ScorerConfig) (string, error) {
	active := ActiveItems(items)
	if len(active) < domain.MinItems {
		return "", domain.NewInsufficientItemsError(len(active))
	}
	if _, err := ranking.NewScorer(scorer); err != nil {
		return "", fmt.Errorf("invalid scorer: %w", err)
	}

	sched, err := ranking.NewScheduler(len(active), s.scheduler.Options()...)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	session := &ports.Session{
		ID:        s.newID(),
		Items:     active,
		Scorer:    scorer,
		State:     sched.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		s.logger.Error("failed to save new session", zap.String("session_id", session.ID), zap.Error(err))
		return "", err
	}

	s.counter(ports.MetricSessionsStarted, map[string]string{"method": methodOf(scorer)})
	s.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.Int("items", len(active)),
		zap.Int("pairs", ranking.PairCount(len(active))))
	return session.ID, nil
}

// Current returns the pair the session is waiting for. The boolean is false
// once every pair has been judged.
func (s *Service) Current(ctx context.Context, id string) (CurrentPair, bool, error) {
	session, sched, err := s.load(ctx, id)
	if err != nil {
		return CurrentPair{}, false, err
	}
	pair, ok := sched.CurrentPair()
	done, total := sched.Progress()
	if !ok {
		return CurrentPair{Done: done, Total: total}, false, nil
	}
	return CurrentPair{
		Index: sched.Cursor(),
		A:     session.Items[pair.A],
		B:     session.Items[pair.B],
		Done:  done,
		Total: total,
	}, true, nil
}

// Judge records winner, an item index, for the session's current pair.
func (s *Service) Judge(ctx context.Context, id string, winner int) error {
	return s.judge(ctx, id, func(sched *ranking.Scheduler) error {
		return sched.RecordWinner(winner)
	}, winner)
}

// JudgeAt is Judge guarded by the pair index returned from Current. It
// fails with domain.ErrInvalidJudgment if the session has moved on.
func (s *Service) JudgeAt(ctx context.Context, id string, pairIndex, winner int) error {
	return s.judge(ctx, id, func(sched *ranking.Scheduler) error {
		return sched.RecordJudgment(pairIndex, winner)
	}, winner)
}

func (s *Service) judge(ctx context.Context, id string, record func(*ranking.Scheduler) error, winner int) error {
	unlock := s.locks.lock(id)
	defer unlock()

	session, sched, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if sched.IsComplete() {
		return fmt.Errorf("session %s: %w", id, ports.ErrSessionComplete)
	}
	if err := record(sched); err != nil {
		return err
	}

	session.State = sched.Snapshot()
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		s.logger.Error("failed to save session", zap.String("session_id", id), zap.Error(err))
		return err
	}

	done, total := sched.Progress()
	labels := map[string]string{"method": methodOf(session.Scorer)}
	s.counter(ports.MetricJudgments, labels)
	if s.metrics != nil {
		s.metrics.RecordGauge(ports.MetricSessionProgress, float64(done)/float64(total), labels)
	}
	s.logger.Debug("judgment recorded",
		zap.String("session_id", id),
		zap.Int("cursor", done),
		zap.Int("winner", winner))

	if sched.IsComplete() {
		s.counter(ports.MetricSessionsCompleted, labels)
		s.logger.Info("session completed", zap.String("session_id", id), zap.Int("comparisons", total))
	}
	return nil
}

// Result scores a completed session.
func (s *Service) Result(ctx context.Context, id string) (domain.RankedResult, error) {
	session, sched, err := s.load(ctx, id)
	if err != nil {
		return domain.RankedResult{}, err
	}
	if !sched.IsComplete() {
		done, total := sched.Progress()
		return domain.RankedResult{}, fmt.Errorf("session %s has %d of %d judgments: %w",
			id, done, total, ports.ErrSessionIncomplete)
	}
	return s.score(ctx, session.Items, sched.Wins(), session.Scorer)
}

// Delete removes the session.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.store.Delete(ctx, id)
}

// List returns the IDs of stored sessions.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

func (s *Service) load(ctx context.Context, id string) (*ports.Session, *ranking.Scheduler, error) {
	session, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sched, err := ranking.Restore(session.State)
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w: %w", id, ports.ErrSessionCorrupted, err)
	}
	if len(session.Items) != sched.Size() {
		return nil, nil, fmt.Errorf("session %s: %w: %d items for %d rows",
			id, ports.ErrSessionCorrupted, len(session.Items), sched.Size())
	}
	return session, sched, nil
}

// score ranks items from m inside a tracing span and records its latency.
func (s *Service) score(ctx context.Context, items []domain.Item, m *domain.WinMatrix, cfg ranking.ScorerConfig) (domain.RankedResult, error) {
	_, span := s.tracer.Start(ctx, "ranking.score",
		trace.WithAttributes(
			attribute.Int("ranking.items", len(items)),
			attribute.String("ranking.method", methodOf(cfg)),
			attribute.Int("ranking.comparisons", m.Total()),
		))
	defer span.End()

	start := s.now()
	scorer, err := ranking.NewScorer(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.RankedResult{}, err
	}
	result, err := ranking.Rank(items, m, scorer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.RankedResult{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordLatency(ports.MetricScoringLatency, s.now().Sub(start), map[string]string{"method": result.Method})
	}
	if top, ok := result.Top(); ok {
		span.SetAttributes(attribute.String("ranking.top_item", top.Item.ID))
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *Service) counter(name string, labels map[string]string) {
	if s.metrics != nil {
		s.metrics.RecordCounter(name, 1, labels)
	}
}

func methodOf(cfg ranking.ScorerConfig) string {
	if cfg.Method == "" {
		return ranking.MethodThurstone
	}
	return cfg.Method
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ports.ErrSessionNotFound) }

// keyedMutex hands out one mutex per key and forgets it when the last
// holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
