package ranking

import (
	"math/rand/v2"
	"strconv"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// SchedulerOption customises NewScheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	rng          *rand.Rand
	balanceSides bool
}

// WithRand injects the random source used for the one-time shuffle.
func WithRand(r *rand.Rand) SchedulerOption {
	return func(o *schedulerOptions) { o.rng = r }
}

// WithSeed makes the pair order reproducible.
func WithSeed(seed uint64) SchedulerOption {
	return func(o *schedulerOptions) { o.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithBalancedSides randomises the presentation order inside each pair.
func WithBalancedSides() SchedulerOption {
	return func(o *schedulerOptions) { o.balanceSides = true }
}

// Scheduler serves every unordered pair of a fixed item set exactly once,
// in a shuffled order, and accumulates the judged outcomes in a WinMatrix.
//
// A Scheduler belongs to a single ranking session and is not safe for
// concurrent use. Randomness is consumed only by NewScheduler.
type Scheduler struct {
	n      int
	pairs  []domain.Pair
	cursor int
	wins   *domain.WinMatrix
}

// NewScheduler builds the N(N-1)/2 pairs for n items and permutes them with
// a Fisher–Yates shuffle. It returns an *domain.InsufficientItemsError when
// n < 2; callers must not start a session in that case.
func NewScheduler(n int, opts ...SchedulerOption) (*Scheduler, error) {
	if n < domain.MinItems {
		return nil, domain.NewInsufficientItemsError(n)
	}

	var o schedulerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		// #nosec G404 - pair order has no security requirement
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pairs := make([]domain.Pair, 0, PairCount(n))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, domain.Pair{A: i, B: j})
		}
	}
	shuffle(o.rng, pairs)
	if o.balanceSides {
		for k := range pairs {
			if o.rng.IntN(2) == 1 {
				pairs[k] = pairs[k].Swap()
			}
		}
	}

	return &Scheduler{
		n:     n,
		pairs: pairs,
		wins:  domain.NewWinMatrix(n),
	}, nil
}

// shuffle is a Fisher–Yates permutation driven by rng.
func shuffle(rng *rand.Rand, pairs []domain.Pair) {
	for i := len(pairs) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
}

// PairCount returns N(N-1)/2, the number of unordered pairs of n items.
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// Size returns the number of items being ranked.
func (s *Scheduler) Size() int { return s.n }

// Cursor returns the index of the next pair to be judged.
func (s *Scheduler) Cursor() int { return s.cursor }

// CurrentPair returns the pair awaiting judgment, or false once every pair
// has been judged.
func (s *Scheduler) CurrentPair() (domain.Pair, bool) {
	if s.IsComplete() {
		return domain.Pair{}, false
	}
	return s.pairs[s.cursor], true
}

// RecordWinner records that winner beat the other member of the current
// pair and advances the cursor. Calling it after completion, or with an
// index outside the current pair, returns an *domain.InvalidJudgmentError
// and leaves the state untouched.
func (s *Scheduler) RecordWinner(winner int) error {
	return s.record("RecordWinner", winner)
}

// RecordJudgment is RecordWinner guarded by the pair index the judge was
// shown. A stale pairIndex (for example a duplicated UI event) is rejected.
func (s *Scheduler) RecordJudgment(pairIndex, winner int) error {
	if pairIndex != s.cursor {
		pair, _ := s.CurrentPair()
		return &domain.InvalidJudgmentError{
			Op:     "RecordJudgment",
			Winner: winner,
			Pair:   pair,
			Cursor: s.cursor,
			Reason: "stale pair index " + strconv.Itoa(pairIndex),
		}
	}
	return s.record("RecordJudgment", winner)
}

func (s *Scheduler) record(op string, winner int) error {
	pair, ok := s.CurrentPair()
	if !ok {
		return &domain.InvalidJudgmentError{
			Op:     op,
			Winner: winner,
			Cursor: s.cursor,
			Reason: "all pairs have already been judged",
		}
	}
	if !pair.Contains(winner) {
		return &domain.InvalidJudgmentError{
			Op:     op,
			Winner: winner,
			Pair:   pair,
			Cursor: s.cursor,
			Reason: "winner is not a member of the current pair",
		}
	}
	if err := s.wins.Record(winner, pair.Other(winner)); err != nil {
		return err
	}
	s.cursor++
	return nil
}

// IsComplete reports whether every pair has been judged.
func (s *Scheduler) IsComplete() bool { return s.cursor >= len(s.pairs) }

// Progress returns the number of judged pairs and the total pair count.
func (s *Scheduler) Progress() (done, total int) { return s.cursor, len(s.pairs) }

// Pairs returns a copy of the full pair schedule.
func (s *Scheduler) Pairs() []domain.Pair { return append([]domain.Pair(nil), s.pairs...) }

// Wins returns a copy of the accumulated win matrix.
func (s *Scheduler) Wins() *domain.WinMatrix { return s.wins.Clone() }
