package domain

import "context"

// Chunk is an indexed document fragment. Chunks are owned by the external
// vector index; the pipeline only holds read-only copies for the lifetime of
// a request.
type Chunk struct {
	ID        string
	Text      string
	SourceDoc string
	Page      int
}

// SearchHit is a single nearest-neighbor match with its similarity score.
// Similarity is cosine-like, in [-1, 1].
type SearchHit struct {
	Chunk      Chunk
	Similarity float64
}

// Candidate ties a retrieved chunk to the hop and sub-question branch that
// produced it. Candidates exist only within one pipeline run.
type Candidate struct {
	Chunk       Chunk
	Similarity  float64
	Hop         int
	SubQuestion int
}

// IntentKind labels the primary intent of a question.
type IntentKind string

const (
	IntentQuery       IntentKind = "query"
	IntentMultiIntent IntentKind = "multi_intent"
	IntentReasoning   IntentKind = "reasoning"
	IntentSummary     IntentKind = "summary"
	IntentFinancial   IntentKind = "financial"
)

// Constraint is a numeric condition extracted from a question, such as an
// amount, percentage, age or duration mentioned as part of a qualification
// check.
type Constraint struct {
	Kind  string
	Value string
}

// Intent is the classification outcome for one question: a primary kind,
// independent boolean facets, and the ordered sub-questions to retrieve for.
// SubQuestions always has at least one entry.
type Intent struct {
	Kind          IntentKind
	IsMultiIntent bool
	IsReasoning   bool
	IsSummary     bool
	IsFinancial   bool
	SubQuestions  []string
	Constraints   []Constraint
}

// Metadata describes how an answer was produced. Slices keep JSON output
// deterministic.
type Metadata struct {
	IntentType      string    `json:"intent_type"`
	IsMultiIntent   bool      `json:"is_multi_intent"`
	IsReasoning     bool      `json:"is_reasoning"`
	IsSummary       bool      `json:"is_summary"`
	IsFinancial     bool      `json:"is_financial"`
	SubQuestions    []string  `json:"sub_questions,omitempty"`
	SearchScores    []float64 `json:"search_scores,omitempty"`
	RetrievalErrors []string  `json:"retrieval_errors,omitempty"`
}

// AnswerResult is the answer to one question: at most three length-bounded
// knowledge points in relevance order, plus metadata.
type AnswerResult struct {
	Question        string   `json:"question"`
	Intent          string   `json:"intent"`
	KnowledgePoints []string `json:"knowledge_points"`
	Metadata        Metadata `json:"metadata"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorIndex returns the nearest stored chunks to a query vector. The index
// is an external, read-mostly collaborator; implementations must honor ctx
// cancellation and deadlines.
type VectorIndex interface {
	Search(ctx context.Context, vector []float64, topK int) ([]SearchHit, error)
}

// Summarizer produces a brief extractive synopsis of the provided text,
// bounded to maxChars runes.
type Summarizer interface {
	Summarize(text string, maxChars int) string
}
