package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsAnswered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_questions_answered_total",
			Help: "Total number of questions answered, by primary intent",
		},
		[]string{"intent"},
	)

	QuestionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_questions_failed_total",
			Help: "Total number of questions that could not be answered",
		},
		[]string{"reason"},
	)

	AnswerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "finqa_answer_duration_seconds",
			Help: "Duration of answering one question in seconds",
		},
		[]string{"intent"},
	)

	RetrievalHops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finqa_retrieval_hops",
			Help:    "Number of search hops executed per question branch",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	RetrievalBranchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_retrieval_branch_errors_total",
			Help: "Total number of sub-question branches that failed during retrieval, by stage",
		},
		[]string{"stage"},
	)

	KnowledgePointsPerAnswer = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finqa_knowledge_points_per_answer",
			Help:    "Number of knowledge points in one answer",
			Buckets: []float64{0, 1, 2, 3},
		},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_embedding_cache_requests_total",
			Help: "Embedding cache lookups, by outcome",
		},
		[]string{"outcome"},
	)
)
