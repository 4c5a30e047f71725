package application

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// DefaultDuplicateThreshold is the similarity at or above which two items
// are reported as near duplicates.
const DefaultDuplicateThreshold = 0.9

// ActiveItems returns the items that take part in ranking, in input order,
// with Index reassigned to 0..N-1. The input is not modified.
func ActiveItems(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if !it.IsActive() {
			continue
		}
		it.Index = len(out)
		out = append(out, it)
	}
	return out
}

// DuplicatePair reports two items whose texts are nearly identical.
type DuplicatePair struct {
	A, B       domain.Item
	Similarity float64
}

// FindNearDuplicates compares every pair of items and reports those whose
// normalised labels have a Levenshtein similarity of at least threshold.
// A threshold outside (0,1] selects DefaultDuplicateThreshold. Results are
// ordered by the first item's position, then the second's.
func FindNearDuplicates(items []domain.Item, threshold float64) []DuplicatePair {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDuplicateThreshold
	}

	normalized := make([]string, len(items))
	for i, it := range items {
		normalized[i] = normalizeText(it.Label())
	}

	var dups []DuplicatePair
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if s := similarity(normalized[i], normalized[j]); s >= threshold {
				dups = append(dups, DuplicatePair{A: items[i], B: items[j], Similarity: s})
			}
		}
	}
	return dups
}

// normalizeText applies NFKC, Unicode case folding and whitespace
// collapsing. A Caser keeps state, so each call builds its own.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// similarity is 1 - distance/maxRunes, or 1 for two empty strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
