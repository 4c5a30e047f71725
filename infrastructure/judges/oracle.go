package judges

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ports"
)

var _ ports.Judge = (*OracleJudge)(nil)

// OracleJudge answers from a known true ordering. It stands in for a judge
// in simulations and tests; with noise it models an imperfect judge.
type OracleJudge struct {
	rank  map[string]int
	noise float64

	mu  sync.Mutex
	rng *rand.Rand
}

// OracleOption configures an OracleJudge.
type OracleOption func(*OracleJudge)

// WithNoise makes the oracle pick the worse item with probability p,
// drawing from a generator seeded with seed.
func WithNoise(p float64, seed uint64) OracleOption {
	return func(o *OracleJudge) {
		o.noise = p
		o.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
}

// NewOracleJudge creates an oracle that prefers items appearing earlier in
// order, a list of item IDs best first.
func NewOracleJudge(order []string, opts ...OracleOption) (*OracleJudge, error) {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := rank[id]; dup {
			return nil, fmt.Errorf("oracle: duplicate item %q", id)
		}
		rank[id] = i
	}
	o := &OracleJudge{rank: rank}
	for _, opt := range opts {
		opt(o)
	}
	if o.noise < 0 || o.noise > 1 {
		return nil, fmt.Errorf("oracle: noise %g outside [0,1]", o.noise)
	}
	return o, nil
}

// Name implements ports.Judge.
func (o *OracleJudge) Name() string { return "oracle" }

// Compare implements ports.Judge.
func (o *OracleJudge) Compare(ctx context.Context, a, b domain.Item) (domain.Judgment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Judgment{}, err
	}
	ra, ok := o.rank[a.ID]
	if !ok {
		return domain.Judgment{}, fmt.Errorf("oracle: unknown item %q", a.ID)
	}
	rb, ok := o.rank[b.ID]
	if !ok {
		return domain.Judgment{}, fmt.Errorf("oracle: unknown item %q", b.ID)
	}

	better, worse := a, b
	if rb < ra {
		better, worse = b, a
	}
	if o.flip() {
		return domain.Judgment{Winner: worse.Index, Confidence: 1 - o.noise, Reasoning: "noise"}, nil
	}
	return domain.Judgment{Winner: better.Index, Confidence: 1 - o.noise}, nil
}

func (o *OracleJudge) flip() bool {
	if o.noise == 0 || o.rng == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64() < o.noise
}
