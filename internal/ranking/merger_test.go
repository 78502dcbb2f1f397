package ranking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
)

func cand(id string, sim float64) domain.Candidate {
	return domain.Candidate{
		Chunk:      domain.Chunk{ID: id, Text: "text " + id, SourceDoc: "doc", Page: 1},
		Similarity: sim,
	}
}

func TestMergeTieBreaksByAscendingChunkID(t *testing.T) {
	m := NewMerger(3, 1500)

	branches := [][]domain.Candidate{{
		cand("3", 0.9),
		cand("1", 0.9),
		cand("2", 0.7),
	}}
	got := m.Merge(branches)

	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Chunk.ID)
	assert.Equal(t, "3", got[1].Chunk.ID)
	assert.Equal(t, "2", got[2].Chunk.ID)
}

func TestMergeDeduplicatesKeepingMaxSimilarity(t *testing.T) {
	m := NewMerger(3, 1500)

	branches := [][]domain.Candidate{
		{cand("a", 0.6), cand("b", 0.55)},
		{cand("a", 0.8)},
	}
	got := m.Merge(branches)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Equal(t, 0.8, got[0].Similarity)
	assert.Equal(t, "b", got[1].Chunk.ID)
}

func TestMergeKeepsTopThree(t *testing.T) {
	m := NewMerger(3, 1500)

	branches := [][]domain.Candidate{{
		cand("a", 0.9), cand("b", 0.8), cand("c", 0.7), cand("d", 0.6), cand("e", 0.5),
	}}
	got := m.Merge(branches)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID})
}

func TestMergeFewerOrZeroCandidates(t *testing.T) {
	m := NewMerger(3, 1500)

	got := m.Merge([][]domain.Candidate{{cand("a", 0.9)}})
	assert.Len(t, got, 1)

	got = m.Merge(nil)
	assert.Empty(t, got)

	got = m.Merge([][]domain.Candidate{{}, nil})
	assert.Empty(t, got)
}

func TestKnowledgePointsMarkerAndShortTextUnchanged(t *testing.T) {
	m := NewMerger(3, 1500)

	selected := []domain.Candidate{{
		Chunk:      domain.Chunk{ID: "c1", Text: "Mobile banking can be opened at any branch.", SourceDoc: "handbook.pdf", Page: 12},
		Similarity: 0.9,
	}}
	got := m.KnowledgePoints(selected)

	require.Len(t, got, 1)
	assert.Equal(t, "[handbook.pdf p.12] Mobile banking can be opened at any branch.", got[0])
}

func TestKnowledgePointsTruncateAtWordBoundary(t *testing.T) {
	m := NewMerger(3, 100)

	long := strings.Repeat("alpha bravo charlie delta echo ", 20)
	selected := []domain.Candidate{{
		Chunk:      domain.Chunk{ID: "c1", Text: long, SourceDoc: "doc", Page: 3},
		Similarity: 0.9,
	}}
	got := m.KnowledgePoints(selected)

	require.Len(t, got, 1)
	point := got[0]
	assert.LessOrEqual(t, utf8.RuneCountInString(point), 100)
	assert.True(t, strings.HasPrefix(point, "[doc p.3] "))

	words := strings.Fields(strings.TrimPrefix(point, "[doc p.3] "))
	for _, w := range words {
		assert.Contains(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, w)
	}
}

func TestTruncateWalksBackToBoundary(t *testing.T) {
	text := "First sentence ends here. Second sentence is much longer and keeps going"
	got := truncateAtBoundary(text, 40)

	assert.Equal(t, "First sentence ends here. Second", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 40)

	// A cut landing right after sentence punctuation keeps it.
	assert.Equal(t, "One.", truncateAtBoundary("One. Twothreefourfivesix", 12))
}

func TestTruncateSingleUnbrokenWordHardCuts(t *testing.T) {
	got := truncateAtBoundary(strings.Repeat("x", 50), 10)
	assert.Equal(t, strings.Repeat("x", 10), got)
}

func TestTruncateWithinBudgetUnchanged(t *testing.T) {
	assert.Equal(t, "short text", truncateAtBoundary("short text", 1500))
}
