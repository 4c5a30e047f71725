package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thurstone/internal/domain"
)

func TestActiveItems(t *testing.T) {
	in := []domain.Item{
		{Index: 0, ID: "a"},
		{Index: 1, ID: "b", Status: domain.StatusDiscarded},
		{Index: 2, ID: "c", Status: domain.StatusActive},
		{Index: 3, ID: "d", Status: domain.StatusSelected},
		{Index: 4, ID: "e"},
	}

	got := ActiveItems(in)
	require.Len(t, got, 3)
	for i, want := range []string{"a", "c", "e"} {
		assert.Equal(t, want, got[i].ID)
		assert.Equal(t, i, got[i].Index)
	}
	assert.Equal(t, 4, in[4].Index, "input must not be modified")
}

func TestFindNearDuplicates(t *testing.T) {
	items := []domain.Item{
		{Index: 0, Content: "Add offline mode"},
		{Index: 1, Content: "  add   OFFLINE mode "},
		{Index: 2, Content: "Dark theme"},
		{Index: 3, Content: "Add offline modes"},
		{Index: 4, Content: "ｄａｒｋ theme"},
	}

	dups := FindNearDuplicates(items, 0)
	require.Len(t, dups, 4)

	assert.Equal(t, 0, dups[0].A.Index)
	assert.Equal(t, 1, dups[0].B.Index)
	assert.InDelta(t, 1.0, dups[0].Similarity, 1e-12)

	assert.Equal(t, 0, dups[1].A.Index)
	assert.Equal(t, 3, dups[1].B.Index)
	assert.GreaterOrEqual(t, dups[1].Similarity, DefaultDuplicateThreshold)

	assert.Equal(t, 1, dups[2].A.Index)
	assert.Equal(t, 3, dups[2].B.Index)

	assert.Equal(t, 2, dups[3].A.Index, "full-width text normalises to ASCII")
	assert.Equal(t, 4, dups[3].B.Index)
}

func TestFindNearDuplicates_Threshold(t *testing.T) {
	items := []domain.Item{
		{Index: 0, Content: "abcd"},
		{Index: 1, Content: "abcx"},
	}
	assert.Empty(t, FindNearDuplicates(items, 0.9))
	dups := FindNearDuplicates(items, 0.75)
	require.Len(t, dups, 1)
	assert.InDelta(t, 0.75, dups[0].Similarity, 1e-12)
}

func TestFindNearDuplicates_FallsBackToID(t *testing.T) {
	items := []domain.Item{{Index: 0, ID: "same"}, {Index: 1, ID: "same"}, {Index: 2, ID: "other"}}
	dups := FindNearDuplicates(items, 1)
	require.Len(t, dups, 1)
	assert.Equal(t, "same", dups[0].A.ID)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("", ""), 1e-12)
	assert.InDelta(t, 0.0, similarity("abc", ""), 1e-12)
	assert.InDelta(t, 1.0/3.0, similarity("héé", "hee"), 1e-12, "distance counts runes, not bytes")
}
