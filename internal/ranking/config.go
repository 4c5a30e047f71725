// Package ranking implements the comparative-judgment core: a round-robin
// comparison scheduler and scorers that turn its win matrix into an
// ordered ranking.
package ranking

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Default probability clamp bounds for the Thurstone scorer. Empirical win
// rates of exactly 0 or 1 would map to infinite z-scores.
const (
	DefaultClampMin = 0.01
	DefaultClampMax = 0.99
)

// Scoring methods understood by NewScorer.
const (
	MethodThurstone = "thurstone"
	MethodWinCount  = "win_count"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// SchedulerConfig controls pair ordering for a ranking session.
type SchedulerConfig struct {
	// Seed fixes the pair permutation. A nil Seed draws a random one.
	Seed *uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// BalanceSides randomises which member of each pair is presented
	// first, in addition to shuffling the pair order.
	BalanceSides bool `yaml:"balance_sides" json:"balance_sides"`
}

// Options converts the configuration into scheduler options.
func (c SchedulerConfig) Options() []SchedulerOption {
	var opts []SchedulerOption
	if c.Seed != nil {
		opts = append(opts, WithSeed(*c.Seed))
	}
	if c.BalanceSides {
		opts = append(opts, WithBalancedSides())
	}
	return opts
}

// ThurstoneConfig defines the tunable constants of the Case V scorer.
type ThurstoneConfig struct {
	// ClampMin is the lowest win probability fed to the quantile function.
	ClampMin float64 `yaml:"clamp_min" json:"clamp_min" validate:"gt=0,lt=0.5"`

	// ClampMax is the highest win probability fed to the quantile function.
	ClampMax float64 `yaml:"clamp_max" json:"clamp_max" validate:"gt=0.5,lt=1"`
}

// DefaultThurstoneConfig returns the clamp bounds [0.01, 0.99].
func DefaultThurstoneConfig() ThurstoneConfig {
	return ThurstoneConfig{ClampMin: DefaultClampMin, ClampMax: DefaultClampMax}
}

// ScorerConfig selects and configures a scorer.
type ScorerConfig struct {
	// Method is either "thurstone" (default) or "win_count".
	Method string `yaml:"method" json:"method" validate:"omitempty,oneof=thurstone win_count"`

	// Thurstone holds the Case V parameters; zero values take defaults.
	Thurstone ThurstoneConfig `yaml:"thurstone" json:"thurstone"`
}

// withDefaults fills unset fields.
func (c ScorerConfig) withDefaults() ScorerConfig {
	if c.Method == "" {
		c.Method = MethodThurstone
	}
	if c.Thurstone.ClampMin == 0 {
		c.Thurstone.ClampMin = DefaultClampMin
	}
	if c.Thurstone.ClampMax == 0 {
		c.Thurstone.ClampMax = DefaultClampMax
	}
	return c
}

func validateConfig(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
