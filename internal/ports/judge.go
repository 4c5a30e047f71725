package ports

import (
	"context"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// Judge decides which of two items is better. Judges may be human
// (reading from a terminal), automated (an LLM) or simulated.
//
// Compare is called with the items in presentation order. The returned
// Judgment.Winner must be a.Index or b.Index; anything else is rejected by
// the scheduler. Implementations should respect context cancellation.
type Judge interface {
	// Name returns a short identifier used in logs and metrics.
	Name() string

	// Compare returns the preferred item of the pair (a, b).
	Compare(ctx context.Context, a, b domain.Item) (domain.Judgment, error)
}

// ProgressReporter is implemented by judges that want to show how far a
// session has progressed before each comparison.
type ProgressReporter interface {
	// ReportProgress receives the number of judged pairs and the total.
	ReportProgress(done, total int)
}
