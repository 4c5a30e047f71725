package domain

import "time"

// RankedEntry is one row of a ranking: an item, its score and its raw win
// count. Wins is informational and never used for ordering.
type RankedEntry struct {
	// Rank is the 1-based position in the ranking.
	Rank int `json:"rank"`

	// Item is the ranked item.
	Item Item `json:"item"`

	// Score is the item's interval-scale score. Scores of a ranking sum to
	// zero for the Thurstone model.
	Score float64 `json:"score"`

	// Wins is the number of comparisons the item won.
	Wins int `json:"wins"`
}

// RankedResult is the final output of a ranking session, sorted by score
// descending. Equal scores keep the items' input order.
type RankedResult struct {
	// Method identifies the scorer that produced the scores.
	Method string `json:"method"`

	// Entries holds one entry per item, best first.
	Entries []RankedEntry `json:"entries"`

	// Comparisons is the total number of recorded judgments.
	Comparisons int `json:"comparisons"`

	// CompletedAt records when the result was computed.
	CompletedAt time.Time `json:"completed_at"`
}

// Top returns the best entry and true, or false for an empty result.
func (r RankedResult) Top() (RankedEntry, bool) {
	if len(r.Entries) == 0 {
		return RankedEntry{}, false
	}
	return r.Entries[0], true
}

// Scores returns the scores indexed by item Index.
func (r RankedResult) Scores() []float64 {
	out := make([]float64, len(r.Entries))
	for _, e := range r.Entries {
		if e.Item.Index >= 0 && e.Item.Index < len(out) {
			out[e.Item.Index] = e.Score
		}
	}
	return out
}
