// Package domain contains pure, dependency-free domain models and types
// for the comparative-judgment ranking engine.
package domain

import "fmt"

// MinItems is the smallest number of items that can be ranked.
const MinItems = 2

// ItemStatus describes where an idea sits in the ideation workflow. Only
// active items take part in a ranking session.
type ItemStatus string

// Supported item statuses.
const (
	StatusActive    ItemStatus = "active"
	StatusSelected  ItemStatus = "selected"
	StatusDiscarded ItemStatus = "discarded"
)

// Item is a single thing being ranked. The engine only addresses items by
// Index; ID and Content are carried through for the caller and for judges
// that need to read the item.
type Item struct {
	// Index addresses the item's row and column in the WinMatrix. Indexes of
	// a session are exactly 0..N-1.
	Index int `json:"index" yaml:"index"`

	// ID is an opaque caller-provided identifier.
	ID string `json:"id" yaml:"id"`

	// Content is optional display text.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// Notes is optional free text attached by the author.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`

	// Status defaults to active when empty.
	Status ItemStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// IsActive reports whether the item should take part in ranking.
func (i Item) IsActive() bool { return i.Status == "" || i.Status == StatusActive }

// Label returns the most readable name for the item.
func (i Item) Label() string {
	if i.Content != "" {
		return i.Content
	}
	if i.ID != "" {
		return i.ID
	}
	return fmt.Sprintf("item-%d", i.Index)
}

// Pair is an unordered pair of distinct item indexes. A and B record the
// order of presentation; identity does not depend on it.
type Pair struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

// NewPair creates a Pair with the lower index first.
func NewPair(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{A: i, B: j}
}

// Contains reports whether idx is one of the pair's members.
func (p Pair) Contains(idx int) bool { return idx == p.A || idx == p.B }

// Other returns the member of the pair that is not idx. The result is only
// meaningful when Contains(idx) is true.
func (p Pair) Other(idx int) int {
	if idx == p.A {
		return p.B
	}
	return p.A
}

// Normalize returns the pair with the lower index first.
func (p Pair) Normalize() Pair { return NewPair(p.A, p.B) }

// Swap returns the pair with its presentation order reversed.
func (p Pair) Swap() Pair { return Pair{A: p.B, B: p.A} }

// String implements fmt.Stringer.
func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.A, p.B) }

// Judgment is the outcome of a single pairwise comparison produced by a
// judge, human or automated.
type Judgment struct {
	// Winner is the index of the preferred item.
	Winner int `json:"winner"`

	// Confidence is the judge's self-reported certainty in [0,1]. Human
	// judges report 1.
	Confidence float64 `json:"confidence"`

	// Reasoning optionally explains the decision.
	Reasoning string `json:"reasoning,omitempty"`
}
