package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// TextRankSummarizer produces an extractive synopsis by ranking sentences
// with damped score propagation over a lexical-overlap graph. Identical input
// and parameters yield byte-identical output.
type TextRankSummarizer struct {
	damping         float64
	epsilon         float64
	maxIterations   int
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewTextRankSummarizer creates a graph-ranking extractive summarizer.
func NewTextRankSummarizer(damping, epsilon float64, maxIterations int) *TextRankSummarizer {
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}
	if epsilon <= 0 {
		epsilon = 0.0001
	}
	if maxIterations <= 0 {
		maxIterations = 100
	}
	return &TextRankSummarizer{
		damping:         damping,
		epsilon:         epsilon,
		maxIterations:   maxIterations,
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]?`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns an extractive summary of at most maxChars runes. Input
// already within the cap is returned unchanged apart from surrounding space.
func (s *TextRankSummarizer) Summarize(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 300
	}
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= maxChars {
		return trimmed
	}

	sentences := s.splitSentences(trimmed)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) == 1 {
		return truncateRunes(sentences[0], maxChars)
	}

	scores := s.rank(sentences)

	// Rank by converged score descending, ties by original position.
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	// Greedy selection under the cap, accounting for single-space joins.
	var selected []int
	running := 0
	for _, idx := range order {
		cost := utf8.RuneCountInString(sentences[idx])
		if len(selected) > 0 {
			cost++
		}
		if running+cost > maxChars {
			break
		}
		selected = append(selected, idx)
		running += cost
	}
	if len(selected) == 0 {
		// The top sentence alone exceeds the cap.
		return truncateRunes(sentences[order[0]], maxChars)
	}

	// Restore narrative order before concatenation.
	sort.Ints(selected)
	parts := make([]string, len(selected))
	for i, idx := range selected {
		parts[i] = sentences[idx]
	}
	return strings.Join(parts, " ")
}

// rank runs the damped propagation until scores converge or the iteration
// cap is hit, using two alternating buffers.
func (s *TextRankSummarizer) rank(sentences []string) []float64 {
	n := len(sentences)
	tokenSets := make([]map[string]struct{}, n)
	for i, sent := range sentences {
		tokenSets[i] = s.tokenSet(sent)
	}

	// Symmetric edge weights; zero-weight edges are omitted from out-weights.
	weights := make([][]float64, n)
	outWeight := make([]float64, n)
	for i := range weights {
		weights[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := ochiai(tokenSets[i], tokenSets[j])
			if w <= 0 {
				continue
			}
			weights[i][j] = w
			weights[j][i] = w
			outWeight[i] += w
			outWeight[j] += w
		}
	}

	prev := make([]float64, n)
	curr := make([]float64, n)
	for i := range prev {
		prev[i] = 1.0
	}
	for iter := 0; iter < s.maxIterations; iter++ {
		maxDelta := 0.0
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < n; j++ {
				if j == i || weights[j][i] == 0 || outWeight[j] == 0 {
					continue
				}
				sum += prev[j] * weights[j][i] / outWeight[j]
			}
			curr[i] = (1 - s.damping) + s.damping*sum
			if d := math.Abs(curr[i] - prev[i]); d > maxDelta {
				maxDelta = d
			}
		}
		prev, curr = curr, prev
		if maxDelta < s.epsilon {
			break
		}
	}
	return prev
}

func (s *TextRankSummarizer) splitSentences(text string) []string {
	raw := s.sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *TextRankSummarizer) tokenSet(text string) map[string]struct{} {
	tokens := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		m[t] = struct{}{}
	}
	return m
}

// ochiai is |A∩B| / sqrt(|A||B|) over two token sets.
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / (math.Sqrt(float64(len(a))) * math.Sqrt(float64(len(b))))
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
