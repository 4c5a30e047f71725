package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-thurstone/infrastructure/judges"
	"github.com/ahrav/go-thurstone/infrastructure/llm"
	"github.com/ahrav/go-thurstone/infrastructure/store"
	"github.com/ahrav/go-thurstone/internal/application"
	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ports"
)

// Circuit breaker settings for LLM judges. A provider that fails this many
// requests in a row is given a rest before the next attempt.
const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadRunConfig(ctx context.Context, path string) (*application.RunConfig, error) {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.LoadFromFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// storeConfig starts from the run file's store section and applies the
// --store and --store-dsn overrides.
func storeConfig(cfg *application.RunConfig) store.Config {
	sc := store.Config{Backend: application.BackendMemory}
	if cfg != nil {
		sc = store.Config{
			Backend: cfg.StoreBackend(),
			DSN:     cfg.Store.DSN,
			TTL:     cfg.Store.TTL,
			Prefix:  cfg.Store.Prefix,
		}
	}
	if b := viper.GetString("store"); b != "" {
		sc.Backend = b
	}
	if dsn := viper.GetString("store-dsn"); dsn != "" {
		sc.DSN = dsn
	}
	return sc
}

func openStore(sc store.Config) (ports.SessionStore, error) {
	st, err := store.Open(sc)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", sc.Backend, err)
	}
	logger.Debug("session store opened", zap.String("backend", sc.Backend))
	return st, nil
}

func newService(cfg *application.RunConfig, st ports.SessionStore) *application.Service {
	opts := []application.ServiceOption{
		application.WithLogger(logger),
		application.WithMetrics(collector),
	}
	if cfg != nil {
		opts = append(opts, application.WithSchedulerConfig(cfg.SchedulerConfig()))
	}
	return application.NewService(st, opts...)
}

// buildJudge creates the automated judge described by cfg.
func buildJudge(cfg *application.RunConfig) (ports.Judge, error) {
	var (
		judge ports.Judge
		err   error
	)
	switch cfg.JudgeType() {
	case application.JudgeOracle:
		var opts []judges.OracleOption
		if cfg.Judge.Noise > 0 {
			opts = append(opts, judges.WithNoise(cfg.Judge.Noise, cfg.Judge.NoiseSeed))
		}
		judge, err = judges.NewOracleJudge(cfg.Judge.Oracle, opts...)
	case application.JudgeLLM:
		judge, err = buildLLMJudge(cfg.Judge)
	default:
		return nil, fmt.Errorf("judge type %q cannot run unattended; use llm or oracle", cfg.JudgeType())
	}
	if err != nil {
		return nil, err
	}
	if cfg.Judge.PositionSwap {
		judge = judges.NewPositionSwapJudge(judge)
	}
	return judge, nil
}

func buildLLMJudge(jc application.JudgeConfig) (ports.Judge, error) {
	provider, model := application.SplitModel(jc.Model)
	budget, err := llm.NewBudgetTracker(llm.Budget{
		MaxTokens: jc.Budget.MaxTokens,
		MaxCalls:  jc.Budget.MaxCalls,
	}, collector)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(provider, llm.ClientConfig{
		APIKey:     apiKey(provider),
		Model:      model,
		BaseURL:    jc.BaseURL,
		Middleware: llmMiddleware(provider, jc, budget),
	})
	if err != nil {
		return nil, err
	}

	jcfg := judges.DefaultLLMJudgeConfig()
	if jc.Criterion != "" {
		jcfg.Criterion = jc.Criterion
	}
	jcfg.Temperature = jc.Temperature
	if jc.MaxTokens > 0 {
		jcfg.MaxTokens = jc.MaxTokens
	}
	return judges.NewLLMJudge(client, jcfg)
}

// llmMiddleware builds the client middleware chain, outermost first:
// tracing, metrics, retry, budget, circuit breaker, rate limit, then a
// per-attempt timeout.
func llmMiddleware(provider string, jc application.JudgeConfig, budget *llm.BudgetTracker) []llm.Middleware {
	mw := []llm.Middleware{llm.TracingMiddleware(provider)}
	if collector != nil {
		mw = append(mw, llm.MetricsMiddleware(provider, collector))
	}
	if r := jc.Retry; r.MaxAttempts > 0 {
		mw = append(mw, llm.RetryMiddleware(r.MaxAttempts, r.InitialWait, r.MaxWait))
	}
	mw = append(mw,
		llm.BudgetMiddleware(budget),
		llm.CircuitBreakerMiddleware(breakerFailures, breakerCooldown))
	if jc.RateLimit > 0 {
		mw = append(mw, llm.RateLimitMiddleware(rate.Limit(jc.RateLimit), 1))
	}
	if jc.Timeout > 0 {
		mw = append(mw, llm.TimeoutMiddleware(jc.Timeout))
	}
	return mw
}

// apiKey resolves the provider key from --api-key style settings
// (THURSTONE_API_KEY) or the provider's conventional variable.
func apiKey(provider string) string {
	if k := viper.GetString("api-key"); k != "" {
		return k
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// warnDuplicates prints near-identical active items so the user can merge
// them before spending comparisons on both.
func warnDuplicates(w io.Writer, items []domain.Item, threshold float64) {
	dups := application.FindNearDuplicates(application.ActiveItems(items), threshold)
	for _, d := range dups {
		fmt.Fprintf(w, "%s %q and %q look like duplicates (%.0f%% similar)\n",
			warnColor.Sprint("warning:"), d.A.Label(), d.B.Label(), d.Similarity*100)
		logger.Info("near-duplicate items",
			zap.String("a", d.A.ID),
			zap.String("b", d.B.ID),
			zap.Float64("similarity", d.Similarity))
	}
}

func closeStore(st ports.SessionStore) {
	if err := st.Close(); err != nil {
		logger.Warn("closing session store", zap.Error(err))
	}
}
