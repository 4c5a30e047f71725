package domain

// Scorer converts a win matrix into one real-valued score per item. The
// returned slice is indexed like the matrix rows. Implementations must be
// pure: the matrix is never modified and equal inputs give equal outputs.
type Scorer interface {
	// Score returns the per-item scores for m.
	//
	// Implementations return an error wrapping ErrInsufficientItems when
	// m has fewer than MinItems rows. A matrix without any recorded
	// comparison is valid and yields all-zero scores.
	Score(m *WinMatrix) ([]float64, error)

	// Method returns the identifier of the scoring model, e.g. "thurstone".
	Method() string
}
