package domain

import (
	"encoding/json"
	"fmt"
)

// WinMatrix is an N×N table of non-negative counts where Wins(i, j) is the
// number of times item i was judged better than item j. The diagonal is
// always zero. A WinMatrix is not safe for concurrent mutation; each
// ranking session owns its own matrix.
type WinMatrix struct {
	n      int
	counts []int
}

// NewWinMatrix returns an empty n×n matrix. Negative sizes are treated as 0.
func NewWinMatrix(n int) *WinMatrix {
	if n < 0 {
		n = 0
	}
	return &WinMatrix{n: n, counts: make([]int, n*n)}
}

// WinMatrixFromRows builds a matrix from row-major counts and validates it.
func WinMatrixFromRows(rows [][]int) (*WinMatrix, error) {
	m := NewWinMatrix(len(rows))
	verr := NewValidationError("WinMatrix")
	for i, row := range rows {
		if len(row) != m.n {
			verr.Addf("row %d has %d columns, want %d", i, len(row), m.n)
			continue
		}
		for j, c := range row {
			switch {
			case c < 0:
				verr.Addf("negative count %d at (%d,%d)", c, i, j)
			case i == j && c != 0:
				verr.Addf("non-zero diagonal %d at (%d,%d)", c, i, j)
			default:
				m.counts[i*m.n+j] = c
			}
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Size returns N, the number of items the matrix covers.
func (m *WinMatrix) Size() int { return m.n }

func (m *WinMatrix) inRange(i int) bool { return i >= 0 && i < m.n }

// Wins returns how many times i beat j. Out-of-range indexes return 0.
func (m *WinMatrix) Wins(i, j int) int {
	if !m.inRange(i) || !m.inRange(j) {
		return 0
	}
	return m.counts[i*m.n+j]
}

// Comparisons returns how many times i and j were compared in total.
func (m *WinMatrix) Comparisons(i, j int) int { return m.Wins(i, j) + m.Wins(j, i) }

// Record adds a single win of winner over loser.
func (m *WinMatrix) Record(winner, loser int) error { return m.Add(winner, loser, 1) }

// Add adds count wins of winner over loser. It rejects self-comparisons,
// out-of-range indexes and negative counts.
func (m *WinMatrix) Add(winner, loser, count int) error {
	switch {
	case !m.inRange(winner) || !m.inRange(loser):
		return fmt.Errorf("%w: index out of range (winner=%d, loser=%d, size=%d)",
			ErrInvalidMatrix, winner, loser, m.n)
	case winner == loser:
		return fmt.Errorf("%w: item %d cannot beat itself", ErrInvalidMatrix, winner)
	case count < 0:
		return fmt.Errorf("%w: negative count %d", ErrInvalidMatrix, count)
	}
	m.counts[winner*m.n+loser] += count
	return nil
}

// TotalWins returns Σ_j Wins(i, j).
func (m *WinMatrix) TotalWins(i int) int {
	if !m.inRange(i) {
		return 0
	}
	total := 0
	for _, c := range m.counts[i*m.n : (i+1)*m.n] {
		total += c
	}
	return total
}

// Total returns the number of recorded comparisons.
func (m *WinMatrix) Total() int {
	total := 0
	for _, c := range m.counts {
		total += c
	}
	return total
}

// Rows returns a row-major copy of the counts.
func (m *WinMatrix) Rows() [][]int {
	rows := make([][]int, m.n)
	for i := range rows {
		rows[i] = append([]int(nil), m.counts[i*m.n:(i+1)*m.n]...)
	}
	return rows
}

// Clone returns an independent copy of the matrix.
func (m *WinMatrix) Clone() *WinMatrix {
	return &WinMatrix{n: m.n, counts: append([]int(nil), m.counts...)}
}

// Permute returns a new matrix where item i of m becomes item perm[i].
// perm must be a permutation of 0..N-1.
func (m *WinMatrix) Permute(perm []int) (*WinMatrix, error) {
	if len(perm) != m.n {
		return nil, fmt.Errorf("%w: permutation length %d, want %d", ErrInvalidMatrix, len(perm), m.n)
	}
	seen := make([]bool, m.n)
	for _, p := range perm {
		if !m.inRange(p) || seen[p] {
			return nil, fmt.Errorf("%w: %v is not a permutation", ErrInvalidMatrix, perm)
		}
		seen[p] = true
	}
	out := NewWinMatrix(m.n)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			out.counts[perm[i]*m.n+perm[j]] = m.counts[i*m.n+j]
		}
	}
	return out, nil
}

// MarshalJSON encodes the matrix as an array of rows.
func (m *WinMatrix) MarshalJSON() ([]byte, error) { return json.Marshal(m.Rows()) }

// UnmarshalJSON decodes an array of rows and validates it.
func (m *WinMatrix) UnmarshalJSON(data []byte) error {
	var rows [][]int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	return m.setRows(rows)
}

// MarshalYAML encodes the matrix as a sequence of rows.
func (m *WinMatrix) MarshalYAML() (any, error) { return m.Rows(), nil }

// UnmarshalYAML decodes a sequence of rows and validates it.
func (m *WinMatrix) UnmarshalYAML(unmarshal func(any) error) error {
	var rows [][]int
	if err := unmarshal(&rows); err != nil {
		return err
	}
	return m.setRows(rows)
}

func (m *WinMatrix) setRows(rows [][]int) error {
	parsed, err := WinMatrixFromRows(rows)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}
