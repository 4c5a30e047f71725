package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// Rank scores m with scorer and returns items ordered best first.
//
// items are addressed by position: items[k] is row k of m, and each
// returned entry's Item.Index is set to k. Items with equal scores keep
// their input order, so the ranking is deterministic for a given matrix.
func Rank(items []domain.Item, m *domain.WinMatrix, scorer domain.Scorer) (domain.RankedResult, error) {
	if len(items) < domain.MinItems {
		return domain.RankedResult{}, domain.NewInsufficientItemsError(len(items))
	}
	if m == nil || m.Size() != len(items) {
		size := 0
		if m != nil {
			size = m.Size()
		}
		return domain.RankedResult{}, fmt.Errorf("%w: matrix size %d does not match %d items",
			domain.ErrInvalidMatrix, size, len(items))
	}
	if scorer == nil {
		return domain.RankedResult{}, fmt.Errorf("ranking requires a scorer")
	}

	scores, err := scorer.Score(m)
	if err != nil {
		return domain.RankedResult{}, fmt.Errorf("%s scoring failed: %w", scorer.Method(), err)
	}

	order := make([]int, len(items))
	for k := range order {
		order[k] = k
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	entries := make([]domain.RankedEntry, len(order))
	for pos, k := range order {
		item := items[k]
		item.Index = k
		entries[pos] = domain.RankedEntry{
			Rank:  pos + 1,
			Item:  item,
			Score: scores[k],
			Wins:  m.TotalWins(k),
		}
	}

	return domain.RankedResult{
		Method:      scorer.Method(),
		Entries:     entries,
		Comparisons: m.Total(),
		CompletedAt: time.Now().UTC(),
	}, nil
}
