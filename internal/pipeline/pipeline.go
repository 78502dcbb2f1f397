package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finqa/internal/domain"
	"finqa/internal/intent"
	"finqa/internal/metrics"
	"finqa/internal/ranking"
	"finqa/internal/retrieval"
)

// Options tunes answer assembly and batch concurrency. Retrieval carries the
// search loop settings through to the orchestrator.
type Options struct {
	Retrieval          retrieval.Options
	MaxKnowledgePoints int
	MaxKnowledgeChars  int
	MaxSummaryChars    int
	BatchWorkers       int
}

// Pipeline answers free-text financial questions: classify, retrieve per
// sub-question, merge and rank, then assemble length-bounded knowledge points.
type Pipeline struct {
	classifier   *intent.Classifier
	orchestrator *retrieval.Orchestrator
	merger       *ranking.Merger
	summarizer   domain.Summarizer
	embedder     domain.Embedder
	index        domain.VectorIndex
	opts         Options
	logger       *zap.Logger
	ready        atomic.Bool
}

// New wires a pipeline over the given collaborators. The pipeline starts not
// ready; call WarmUp before answering.
func New(embedder domain.Embedder, index domain.VectorIndex, summarizer domain.Summarizer, opts Options, logger *zap.Logger) *Pipeline {
	if opts.MaxKnowledgePoints <= 0 {
		opts.MaxKnowledgePoints = 3
	}
	if opts.MaxKnowledgeChars <= 0 {
		opts.MaxKnowledgeChars = 1500
	}
	if opts.MaxSummaryChars <= 0 {
		opts.MaxSummaryChars = 300
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier:   intent.NewClassifier(),
		orchestrator: retrieval.NewOrchestrator(embedder, index, opts.Retrieval, logger),
		merger:       ranking.NewMerger(opts.MaxKnowledgePoints, opts.MaxKnowledgeChars),
		summarizer:   summarizer,
		embedder:     embedder,
		index:        index,
		opts:         opts,
		logger:       logger,
	}
}

// WarmUp probes the embedder with a short text and the index with the
// resulting vector. A probe failure leaves the pipeline not ready; a later
// retry may succeed.
func (p *Pipeline) WarmUp(ctx context.Context) error {
	timeout := p.opts.Retrieval.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vector, err := p.embedder.Embed(cctx, "warm-up probe")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if _, err := p.index.Search(cctx, vector, 1); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	p.ready.Store(true)
	p.logger.Info("pipeline ready", zap.String("embedder", p.embedder.Name()))
	return nil
}

// Ready reports whether a warm-up probe has succeeded.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// Answer runs the full pipeline for one question. After a successful warm-up
// it never returns an error: degraded branches surface as retrieval_errors in
// the metadata and an empty knowledge point list is a valid answer.
func (p *Pipeline) Answer(ctx context.Context, question string) (domain.AnswerResult, error) {
	if !p.ready.Load() {
		metrics.QuestionsFailed.WithLabelValues("not_ready").Inc()
		return domain.AnswerResult{}, domain.ErrNotReady
	}
	start := time.Now()
	log := p.logger.With(zap.String("request_id", uuid.NewString()))
	log.Info("question received", zap.String("question", question))

	it := p.classifier.Classify(question)
	log.Debug("intent classified",
		zap.String("intent", string(it.Kind)),
		zap.Int("sub_questions", len(it.SubQuestions)))

	branches := p.orchestrator.Retrieve(ctx, it)
	candidateSets := make([][]domain.Candidate, 0, len(branches))
	var retrievalErrors []string
	for _, b := range branches {
		candidateSets = append(candidateSets, b.Candidates)
		if b.Err != nil {
			retrievalErrors = append(retrievalErrors, fmt.Sprintf("%s: %v", b.SubQuestion, b.Err))
		}
	}

	selected := p.merger.Merge(candidateSets)
	points := p.merger.KnowledgePoints(selected)
	if it.IsSummary {
		points = p.summaryPoints(selected, points)
	}

	var subQuestions []string
	if it.IsMultiIntent {
		subQuestions = it.SubQuestions
	}
	result := domain.AnswerResult{
		Question:        question,
		Intent:          string(it.Kind),
		KnowledgePoints: points,
		Metadata: domain.Metadata{
			IntentType:      string(it.Kind),
			IsMultiIntent:   it.IsMultiIntent,
			IsReasoning:     it.IsReasoning,
			IsSummary:       it.IsSummary,
			IsFinancial:     it.IsFinancial,
			SubQuestions:    subQuestions,
			SearchScores:    searchScores(selected),
			RetrievalErrors: retrievalErrors,
		},
	}

	metrics.QuestionsAnswered.WithLabelValues(string(it.Kind)).Inc()
	metrics.AnswerDuration.WithLabelValues(string(it.Kind)).Observe(time.Since(start).Seconds())
	metrics.KnowledgePointsPerAnswer.Observe(float64(len(points)))
	log.Info("question answered",
		zap.String("intent", string(it.Kind)),
		zap.Int("knowledge_points", len(points)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// BatchAnswer answers every question with at most BatchWorkers running at
// once. Results land at the index of their question regardless of completion
// order.
func (p *Pipeline) BatchAnswer(ctx context.Context, questions []string) ([]domain.AnswerResult, error) {
	if !p.ready.Load() {
		metrics.QuestionsFailed.WithLabelValues("not_ready").Inc()
		return nil, domain.ErrNotReady
	}
	results := make([]domain.AnswerResult, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchWorkers)
	for i, q := range questions {
		g.Go(func() error {
			res, err := p.Answer(gctx, q)
			if err != nil {
				return fmt.Errorf("question %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// summaryPoints places the generated synopsis first, keeping at most two of
// the ranked excerpts behind it so the total stays within the point budget.
func (p *Pipeline) summaryPoints(selected []domain.Candidate, points []string) []string {
	if len(selected) == 0 {
		return points
	}
	texts := make([]string, 0, len(selected))
	for _, c := range selected {
		texts = append(texts, c.Chunk.Text)
	}
	summary := p.summarizer.Summarize(strings.Join(texts, " "), p.opts.MaxSummaryChars)
	if summary == "" {
		return points
	}
	keep := p.opts.MaxKnowledgePoints - 1
	if keep > 2 {
		keep = 2
	}
	if keep > len(points) {
		keep = len(points)
	}
	return append([]string{summary}, points[:keep]...)
}

func searchScores(selected []domain.Candidate) []float64 {
	if len(selected) == 0 {
		return nil
	}
	out := make([]float64, 0, len(selected))
	for _, c := range selected {
		out = append(out, c.Similarity)
	}
	return out
}
