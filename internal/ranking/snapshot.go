package ranking

import (
	"github.com/ahrav/go-thurstone/internal/domain"
)

// SnapshotVersion is the current Snapshot format.
const SnapshotVersion = 1

// Snapshot is the serialisable state of a Scheduler. It carries the
// shuffled pair order so a restored session continues exactly where it
// stopped without consuming randomness.
type Snapshot struct {
	Version int               `json:"version" yaml:"version"`
	Size    int               `json:"size" yaml:"size"`
	Pairs   []domain.Pair     `json:"pairs" yaml:"pairs"`
	Cursor  int               `json:"cursor" yaml:"cursor"`
	Wins    *domain.WinMatrix `json:"wins" yaml:"wins"`
}

// Snapshot captures the scheduler state. The result shares no memory with
// the scheduler.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		Size:    s.n,
		Pairs:   s.Pairs(),
		Cursor:  s.cursor,
		Wins:    s.Wins(),
	}
}

// Restore rebuilds a Scheduler from snap after checking that it describes
// a consistent round robin: every unordered pair appears once, the cursor
// is in range, and exactly the judged prefix has one recorded outcome.
func Restore(snap Snapshot) (*Scheduler, error) {
	verr := domain.NewValidationError("Snapshot")

	if snap.Version != SnapshotVersion {
		verr.Addf("unsupported version %d", snap.Version)
	}
	if snap.Size < domain.MinItems {
		return nil, domain.NewInsufficientItemsError(snap.Size)
	}
	if want := PairCount(snap.Size); len(snap.Pairs) != want {
		verr.Addf("expected %d pairs, got %d", want, len(snap.Pairs))
	}
	if snap.Cursor < 0 || snap.Cursor > len(snap.Pairs) {
		verr.Addf("cursor %d out of range [0,%d]", snap.Cursor, len(snap.Pairs))
	}
	if snap.Wins == nil {
		verr.AddError("missing win matrix")
	} else if snap.Wins.Size() != snap.Size {
		verr.Addf("win matrix size %d does not match size %d", snap.Wins.Size(), snap.Size)
	}

	seen := make(map[domain.Pair]struct{}, len(snap.Pairs))
	for k, p := range snap.Pairs {
		if p.A == p.B || p.A < 0 || p.B < 0 || p.A >= snap.Size || p.B >= snap.Size {
			verr.Addf("pair %d %s is invalid", k, p)
			continue
		}
		key := p.Normalize()
		if _, dup := seen[key]; dup {
			verr.Addf("pair %d %s is duplicated", k, p)
		}
		seen[key] = struct{}{}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	for k, p := range snap.Pairs {
		want := 0
		if k < snap.Cursor {
			want = 1
		}
		if got := snap.Wins.Comparisons(p.A, p.B); got != want {
			verr.Addf("pair %d %s has %d recorded outcomes, expected %d", k, p, got, want)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	return &Scheduler{
		n:      snap.Size,
		pairs:  append([]domain.Pair(nil), snap.Pairs...),
		cursor: snap.Cursor,
		wins:   snap.Wins.Clone(),
	}, nil
}
