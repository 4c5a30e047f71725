package application

import (
	"time"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ranking"
)

// Judge types understood by RunConfig.
const (
	JudgeConsole = "console"
	JudgeLLM     = "llm"
	JudgeOracle  = "oracle"
)

// Store backends understood by RunConfig.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// RunConfig is the complete description of a ranking run and the primary
// configuration entry point for the CLI. It is loaded from YAML by
// ConfigLoader.
type RunConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the run.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Items are the ideas to rank, in input order. Order matters: it
	// decides ties.
	Items []ItemConfig `yaml:"items" validate:"required,min=2,dive"`
	// Scheduler controls pair ordering.
	Scheduler SchedulerSection `yaml:"scheduler"`
	// Scorer selects the scoring model.
	Scorer ScorerSection `yaml:"scorer"`
	// Judge selects who decides each comparison.
	Judge JudgeConfig `yaml:"judge"`
	// Store selects where sessions are persisted.
	Store StoreConfig `yaml:"store"`
	// Dedupe configures the near-duplicate check run before ranking.
	Dedupe DedupeConfig `yaml:"dedupe"`
}

// Metadata provides descriptive information about a run.
type Metadata struct {
	// Name is the human-readable identifier for the run.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what is being ranked.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
}

// ItemConfig is one idea in the run configuration.
type ItemConfig struct {
	// ID must be unique within the run.
	ID      string `yaml:"id" validate:"required,min=1,max=100"`
	Content string `yaml:"content" validate:"max=10000"`
	Notes   string `yaml:"notes" validate:"max=10000"`
	// Status defaults to active. Only active items are ranked.
	Status string `yaml:"status" validate:"omitempty,oneof=active selected discarded"`
}

// SchedulerSection mirrors ranking.SchedulerConfig.
type SchedulerSection struct {
	Seed         *uint64 `yaml:"seed"`
	BalanceSides bool    `yaml:"balance_sides"`
}

// ScorerSection mirrors ranking.ScorerConfig with every field optional.
type ScorerSection struct {
	Method   string  `yaml:"method" validate:"omitempty,oneof=thurstone win_count"`
	ClampMin float64 `yaml:"clamp_min" validate:"omitempty,gt=0,lt=0.5"`
	ClampMax float64 `yaml:"clamp_max" validate:"omitempty,gt=0.5,lt=1"`
}

// JudgeConfig selects and tunes the judge.
type JudgeConfig struct {
	// Type is console (default), llm or oracle.
	Type string `yaml:"type" validate:"omitempty,oneof=console llm oracle"`
	// Model is "provider/model", e.g. "openai/gpt-4o-mini". Required for
	// the llm judge.
	Model string `yaml:"model" validate:"omitempty,modelformat"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// Criterion is the question the judge answers for each pair.
	Criterion string `yaml:"criterion" validate:"max=2000"`
	// PositionSwap asks every pair in both orders.
	PositionSwap bool    `yaml:"position_swap"`
	Temperature  float64 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens    int     `yaml:"max_tokens" validate:"omitempty,min=1,max=100000"`
	// Concurrency bounds the sessions judged at once by RunAll.
	Concurrency int         `yaml:"concurrency" validate:"omitempty,min=1,max=64"`
	Retry       RetryConfig `yaml:"retry"`
	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64       `yaml:"rate_limit" validate:"min=0,max=1000"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0"`
	// Budget caps LLM usage for the whole run.
	Budget BudgetConfig `yaml:"budget"`
	// Oracle is the hidden true ordering (item IDs, best first) used by
	// the oracle judge.
	Oracle []string `yaml:"oracle"`
	// Noise is the probability that the oracle judge flips a verdict.
	Noise     float64 `yaml:"noise" validate:"min=0,max=1"`
	NoiseSeed uint64  `yaml:"noise_seed"`
}

// RetryConfig specifies the error recovery strategy for LLM requests.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first attempt; 0
	// disables retries.
	MaxAttempts int `yaml:"max_attempts" validate:"min=0,max=10"`
	// InitialWait is the base delay before the first retry.
	InitialWait time.Duration `yaml:"initial_wait" validate:"min=0"`
	// MaxWait caps the delay between retries.
	MaxWait time.Duration `yaml:"max_wait" validate:"min=0"`
}

// BudgetConfig limits what an LLM judge may spend. Zero means unlimited.
type BudgetConfig struct {
	MaxTokens int64 `yaml:"max_tokens" validate:"min=0"`
	MaxCalls  int64 `yaml:"max_calls" validate:"min=0"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	// Backend is memory (default), redis or sqlite.
	Backend string `yaml:"backend" validate:"omitempty,oneof=memory redis sqlite"`
	// DSN is the Redis URL or the SQLite file path.
	DSN string `yaml:"dsn"`
	// TTL expires Redis sessions; zero keeps them forever.
	TTL time.Duration `yaml:"ttl" validate:"min=0"`
	// Prefix namespaces Redis keys.
	Prefix string `yaml:"prefix" validate:"max=100"`
}

// DedupeConfig configures near-duplicate detection.
type DedupeConfig struct {
	// Threshold is the minimum similarity in (0,1] at which two items are
	// reported. Zero selects DefaultDuplicateThreshold.
	Threshold float64 `yaml:"threshold" validate:"omitempty,gt=0,lte=1"`
}

// DomainItems converts the configured items into domain items in input
// order. Indexes are provisional until ActiveItems reassigns them.
func (c *RunConfig) DomainItems() []domain.Item {
	items := make([]domain.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = domain.Item{
			Index:   i,
			ID:      it.ID,
			Content: it.Content,
			Notes:   it.Notes,
			Status:  domain.ItemStatus(it.Status),
		}
	}
	return items
}

// SchedulerConfig returns the scheduler section as a ranking config.
func (c *RunConfig) SchedulerConfig() ranking.SchedulerConfig {
	return ranking.SchedulerConfig{Seed: c.Scheduler.Seed, BalanceSides: c.Scheduler.BalanceSides}
}

// ScorerConfig returns the scorer section as a ranking config.
func (c *RunConfig) ScorerConfig() ranking.ScorerConfig { return c.Scorer.Config() }

// Config converts the section into a ranking config. Unset clamp bounds
// take the package defaults.
func (s ScorerSection) Config() ranking.ScorerConfig {
	cfg := ranking.ScorerConfig{
		Method:    s.Method,
		Thurstone: ranking.DefaultThurstoneConfig(),
	}
	if cfg.Method == "" {
		cfg.Method = ranking.MethodThurstone
	}
	if s.ClampMin != 0 {
		cfg.Thurstone.ClampMin = s.ClampMin
	}
	if s.ClampMax != 0 {
		cfg.Thurstone.ClampMax = s.ClampMax
	}
	return cfg
}

// JudgeType returns the configured judge type, defaulting to console.
func (c *RunConfig) JudgeType() string {
	if c.Judge.Type == "" {
		return JudgeConsole
	}
	return c.Judge.Type
}

// StoreBackend returns the configured backend, defaulting to memory.
func (c *RunConfig) StoreBackend() string {
	if c.Store.Backend == "" {
		return BackendMemory
	}
	return c.Store.Backend
}
