package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"finqa/internal/domain"
	"finqa/internal/metrics"
)

// Options tunes the multi-hop search loop.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	HopBudget           int
	HopEpsilon          float64
	CallTimeout         time.Duration
}

// BranchResult is the retrieval outcome of one sub-question branch. Err is
// set when the branch degraded; Candidates then hold whatever completed hops
// produced before the failure.
type BranchResult struct {
	SubQuestion string
	Candidates  []domain.Candidate
	Err         error
}

// Orchestrator issues vector searches per sub-question, following up with
// dependent queries within a hop budget for reasoning-style intents.
type Orchestrator struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	opts     Options
	logger   *zap.Logger
}

// NewOrchestrator creates a retrieval orchestrator over the given collaborators.
func NewOrchestrator(embedder domain.Embedder, index domain.VectorIndex, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.HopBudget <= 0 {
		opts.HopBudget = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{embedder: embedder, index: index, opts: opts, logger: logger}
}

// Retrieve runs one branch per sub-question and never fails as a whole: a
// branch whose embedding or search breaks degrades to its partial candidates
// plus an error note while the remaining branches proceed.
func (o *Orchestrator) Retrieve(ctx context.Context, it domain.Intent) []BranchResult {
	budget := 1
	switch it.Kind {
	case domain.IntentReasoning, domain.IntentFinancial, domain.IntentMultiIntent:
		budget = o.opts.HopBudget
	}

	results := make([]BranchResult, len(it.SubQuestions))
	for i, sub := range it.SubQuestions {
		candidates, hops, err := o.retrieveBranch(ctx, sub, i, budget, it.Constraints)
		metrics.RetrievalHops.Observe(float64(hops))
		if err != nil {
			stage := "search"
			if errors.Is(err, domain.ErrEmbeddingUnavailable) {
				stage = "embed"
			}
			metrics.RetrievalBranchErrors.WithLabelValues(stage).Inc()
			o.logger.Warn("retrieval branch degraded",
				zap.String("sub_question", sub),
				zap.Int("completed_hops", hops),
				zap.Error(err))
		} else {
			o.logger.Debug("retrieval branch done",
				zap.String("sub_question", sub),
				zap.Int("hops", hops),
				zap.Int("candidates", len(candidates)))
		}
		results[i] = BranchResult{SubQuestion: sub, Candidates: candidates, Err: err}
	}
	return results
}

// retrieveBranch runs up to budget dependent searches for one sub-question.
// It returns the accumulated candidates and the number of completed hops.
func (o *Orchestrator) retrieveBranch(ctx context.Context, subQuestion string, branch, budget int, constraints []domain.Constraint) ([]domain.Candidate, int, error) {
	maxCandidates := budget * o.opts.TopK
	query := subQuestion
	bestSoFar := math.Inf(-1)

	var candidates []domain.Candidate
	for hop := 1; hop <= budget; hop++ {
		vector, err := o.embed(ctx, query)
		if err != nil {
			return candidates, hop - 1, err
		}
		hits, err := o.search(ctx, vector)
		if err != nil {
			return candidates, hop - 1, err
		}

		// Keep hits at or above the threshold, tracking the hop's strongest
		// chunk for follow-up derivation.
		hopBest := math.Inf(-1)
		var strongest domain.Chunk
		found := false
		for _, h := range hits {
			if h.Similarity < o.opts.SimilarityThreshold {
				continue
			}
			if !found || h.Similarity > hopBest || (h.Similarity == hopBest && h.Chunk.ID < strongest.ID) {
				hopBest = h.Similarity
				strongest = h.Chunk
				found = true
			}
			if len(candidates) < maxCandidates {
				candidates = append(candidates, domain.Candidate{
					Chunk:       h.Chunk,
					Similarity:  h.Similarity,
					Hop:         hop,
					SubQuestion: branch,
				})
			}
		}

		if !found {
			return candidates, hop, nil
		}
		if hop > 1 && hopBest-bestSoFar < o.opts.HopEpsilon {
			return candidates, hop, nil
		}
		if hopBest > bestSoFar {
			bestSoFar = hopBest
		}
		if hop == budget {
			break
		}
		query = followUpQuery(strongest.Text, constraints)
		if query == "" {
			return candidates, hop, nil
		}
	}
	return candidates, budget, nil
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float64, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	vector, err := o.embedder.Embed(cctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return vector, nil
}

func (o *Orchestrator) search(ctx context.Context, vector []float64) ([]domain.SearchHit, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	hits, err := o.index.Search(cctx, vector, o.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return hits, nil
}

var (
	tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	stopwords    = defaultStopwords()
)

// followUpQuery derives the next dependent query from the strongest chunk's
// most frequent terms plus the question's extracted constraint values.
func followUpQuery(chunkText string, constraints []domain.Constraint) string {
	parts := topTerms(chunkText, 3)
	for _, c := range constraints {
		parts = append(parts, c.Value)
	}
	return strings.Join(parts, " ")
}

// topTerms returns the n most frequent non-stopword terms, count descending,
// ties broken alphabetically.
func topTerms(text string, n int) []string {
	counts := map[string]int{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, ok := stopwords[tok]; ok {
			continue
		}
		counts[tok]++
	}
	type pair struct {
		term  string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for t, c := range counts {
		pairs = append(pairs, pair{t, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].term < pairs[j].term
	})
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, pairs[i].term)
	}
	return out
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
