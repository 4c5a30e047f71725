package ranking

import (
	"fmt"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/stats"
)

// Compile-time interface checks.
var (
	_ domain.Scorer = (*ThurstoneScorer)(nil)
	_ domain.Scorer = (*WinCountScorer)(nil)
)

// ThurstoneScorer implements Thurstone's Case V model. Each item's score
// is the mean probit of its empirical win rate against every item it was
// compared with, centred so the scores of a ranking sum to zero.
type ThurstoneScorer struct {
	cfg ThurstoneConfig
}

// NewThurstoneScorer validates cfg and returns a scorer.
func NewThurstoneScorer(cfg ThurstoneConfig) (*ThurstoneScorer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.ClampMin >= cfg.ClampMax {
		return nil, fmt.Errorf("configuration validation failed: clamp_min %g must be below clamp_max %g",
			cfg.ClampMin, cfg.ClampMax)
	}
	return &ThurstoneScorer{cfg: cfg}, nil
}

// Method implements domain.Scorer.
func (s *ThurstoneScorer) Method() string { return MethodThurstone }

// Config returns the scorer's clamp bounds.
func (s *ThurstoneScorer) Config() ThurstoneConfig { return s.cfg }

// Score implements domain.Scorer.
//
// For every ordered pair (i, j) with at least one comparison the win rate
// p = W[i][j] / (W[i][j] + W[j][i]) is clamped to [ClampMin, ClampMax] and
// mapped through Φ⁻¹. An item's raw score is the mean over the pairs it
// took part in, or 0 when it has none. Raw scores are then shifted by
// their mean.
func (s *ThurstoneScorer) Score(m *domain.WinMatrix) ([]float64, error) {
	if err := checkScorable(m); err != nil {
		return nil, err
	}

	n := m.Size()
	raw := make([]float64, n)
	for i := range n {
		var sum float64
		var count int
		for j := range n {
			if i == j {
				continue
			}
			w, l := m.Wins(i, j), m.Wins(j, i)
			if w+l == 0 {
				continue
			}
			z, err := stats.NormalQuantile(s.clamp(float64(w) / float64(w+l)))
			if err != nil {
				return nil, fmt.Errorf("scoring item %d against %d: %w", i, j, err)
			}
			sum += z
			count++
		}
		if count > 0 {
			raw[i] = sum / float64(count)
		}
	}
	return centre(raw), nil
}

func (s *ThurstoneScorer) clamp(p float64) float64 {
	return min(max(p, s.cfg.ClampMin), s.cfg.ClampMax)
}

// WinCountScorer scores each item by its total wins minus the mean total
// wins. It is the ordinal baseline the Thurstone model refines.
type WinCountScorer struct{}

// NewWinCountScorer returns a WinCountScorer.
func NewWinCountScorer() *WinCountScorer { return &WinCountScorer{} }

// Method implements domain.Scorer.
func (*WinCountScorer) Method() string { return MethodWinCount }

// Score implements domain.Scorer.
func (*WinCountScorer) Score(m *domain.WinMatrix) ([]float64, error) {
	if err := checkScorable(m); err != nil {
		return nil, err
	}
	raw := make([]float64, m.Size())
	for i := range raw {
		raw[i] = float64(m.TotalWins(i))
	}
	return centre(raw), nil
}

// NewScorer builds the scorer selected by cfg. Unset fields take defaults.
func NewScorer(cfg ScorerConfig) (domain.Scorer, error) {
	cfg = cfg.withDefaults()
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Method {
	case MethodThurstone:
		return NewThurstoneScorer(cfg.Thurstone)
	case MethodWinCount:
		return NewWinCountScorer(), nil
	default:
		return nil, fmt.Errorf("unknown scoring method %q", cfg.Method)
	}
}

func checkScorable(m *domain.WinMatrix) error {
	if m == nil {
		return domain.NewInsufficientItemsError(0)
	}
	if m.Size() < domain.MinItems {
		return domain.NewInsufficientItemsError(m.Size())
	}
	return nil
}

// centre subtracts the arithmetic mean in place and returns xs.
func centre(xs []float64) []float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for i := range xs {
		xs[i] -= mean
	}
	return xs
}
