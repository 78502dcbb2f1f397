package ranking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"finqa/internal/domain"
)

// Merger flattens per-branch candidates into the final ordered knowledge
// points: deduplicated by chunk id, similarity descending, length bounded.
type Merger struct {
	maxPoints int
	maxChars  int
}

// NewMerger creates a merger keeping at most maxPoints candidates, each
// rendered to at most maxChars runes including its source marker.
func NewMerger(maxPoints, maxChars int) *Merger {
	if maxPoints <= 0 {
		maxPoints = 3
	}
	if maxChars <= 0 {
		maxChars = 1500
	}
	return &Merger{maxPoints: maxPoints, maxChars: maxChars}
}

// Merge deduplicates candidates across branches by chunk id keeping the
// maximum similarity seen, orders them by similarity descending with ties
// broken by ascending chunk id, and returns the top entries. An empty result
// is a valid outcome, not an error.
func (m *Merger) Merge(branches [][]domain.Candidate) []domain.Candidate {
	best := map[string]domain.Candidate{}
	for _, branch := range branches {
		for _, c := range branch {
			cur, ok := best[c.Chunk.ID]
			if !ok || c.Similarity > cur.Similarity {
				best[c.Chunk.ID] = c
			}
		}
	}

	merged := make([]domain.Candidate, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	if len(merged) > m.maxPoints {
		merged = merged[:m.maxPoints]
	}
	return merged
}

// KnowledgePoints renders the selected candidates as source-marked excerpts.
func (m *Merger) KnowledgePoints(selected []domain.Candidate) []string {
	out := make([]string, 0, len(selected))
	for _, c := range selected {
		out = append(out, m.renderPoint(c.Chunk))
	}
	return out
}

func (m *Merger) renderPoint(ch domain.Chunk) string {
	marker := fmt.Sprintf("[%s p.%d] ", ch.SourceDoc, ch.Page)
	budget := m.maxChars - utf8.RuneCountInString(marker)
	if budget <= 0 {
		return truncateAtBoundary(marker, m.maxChars)
	}
	return marker + truncateAtBoundary(ch.Text, budget)
}

// truncateAtBoundary cuts text to at most maxRunes runes at the nearest
// preceding whitespace or sentence-ending punctuation, never mid-word. Text
// already within the budget is returned unchanged.
func truncateAtBoundary(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	end := maxRunes
	// The cut is already clean when it lands on a space or just after a
	// boundary rune; otherwise walk back to the previous boundary.
	if !unicode.IsSpace(runes[end]) && !isBoundary(runes[end-1]) {
		i := end - 1
		for i > 0 && !isBoundary(runes[i-1]) {
			i--
		}
		if i > 0 {
			end = i
		}
		// i == 0 means one unbroken word; a hard cut is all that is left.
	}
	return strings.TrimRightFunc(string(runes[:end]), unicode.IsSpace)
}

func isBoundary(r rune) bool {
	return unicode.IsSpace(r) || isSentenceEnd(r)
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '。', '！', '？', '；':
		return true
	}
	return false
}
