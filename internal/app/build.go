package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finqa/internal/config"
	"finqa/internal/domain"
	"finqa/internal/embedding"
	"finqa/internal/pipeline"
	"finqa/internal/retrieval"
	"finqa/internal/summarizer"
	"finqa/internal/vectorindex"
)

// ingestingIndex is implemented by index adapters that can be reloaded from a
// local chunk snapshot.
type ingestingIndex interface {
	domain.VectorIndex
	Clear(ctx context.Context) error
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
}

// Build assembles the configured embedder, vector index and pipeline, loads
// the chunk snapshot when one is configured, and runs the warm-up probe. The
// returned banner is a one-line assembly description for interactive display.
func Build(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*pipeline.Pipeline, string, error) {
	emb, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, "", err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return nil, "", err
	}
	if wv, ok := idx.(*vectorindex.Weaviate); ok {
		if err := wv.Ready(ctx); err != nil {
			return nil, "", fmt.Errorf("weaviate readiness: %w", err)
		}
	}

	banner := fmt.Sprintf("embedder=%s index=%s", emb.Name(), indexType(cfg))
	if path := cfg.VectorIndex.SnapshotPath; path != "" {
		n, err := loadSnapshot(ctx, path, emb, idx)
		if err != nil {
			return nil, "", err
		}
		banner += fmt.Sprintf(" chunks=%d", n)
		logger.Info("chunk snapshot loaded", zap.String("path", path), zap.Int("chunks", n))
	}

	p := pipeline.New(emb, idx, buildSummarizer(cfg), pipelineOptions(cfg), logger)
	if err := p.WarmUp(ctx); err != nil {
		return nil, "", fmt.Errorf("warm-up failed: %w", err)
	}
	return p, banner, nil
}

func buildEmbedder(cfg *config.AppConfig, logger *zap.Logger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = embedding.NewTFIDFEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv:  cfg.Embedder.OpenAI.APIKeyEnv,
			Model:      cfg.Embedder.OpenAI.Model,
			Timeout:    time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Embedder.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	if c := cfg.Embedder.Cache; c != nil && c.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: c.Addr})
		emb = embedding.NewCachedEmbedder(emb, rdb, c.KeyPrefix, time.Duration(c.TTLSecs)*time.Second, logger)
	}
	return emb, nil
}

func buildIndex(cfg *config.AppConfig) (domain.VectorIndex, error) {
	switch cfg.VectorIndex.Type {
	case "memory", "":
		return vectorindex.NewMemory(), nil
	case "qdrant":
		if cfg.VectorIndex.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        cfg.VectorIndex.Qdrant.URL,
			APIKey:     cfg.VectorIndex.Qdrant.APIKey,
			Collection: cfg.VectorIndex.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorIndex.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "weaviate":
		if cfg.VectorIndex.Weaviate == nil {
			return nil, errors.New("weaviate config missing")
		}
		return vectorindex.NewWeaviate(vectorindex.WeaviateConfig{
			Host:      cfg.VectorIndex.Weaviate.Host,
			Scheme:    cfg.VectorIndex.Weaviate.Scheme,
			APIKey:    os.Getenv(cfg.VectorIndex.Weaviate.APIKeyEnv),
			ClassName: cfg.VectorIndex.Weaviate.ClassName,
			Timeout:   time.Duration(cfg.VectorIndex.Weaviate.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector index: %s", cfg.VectorIndex.Type)
	}
}

// loadSnapshot embeds every snapshot chunk with the configured embedder and
// replaces the index contents. Indexes without an ingestion surface (their
// collections are managed externally) reject snapshots.
func loadSnapshot(ctx context.Context, path string, emb domain.Embedder, idx domain.VectorIndex) (int, error) {
	ing, ok := idx.(ingestingIndex)
	if !ok {
		return 0, errors.New("configured vector index cannot load snapshots")
	}
	chunks, err := vectorindex.LoadSnapshot(path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("snapshot %s holds no chunks", path)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := emb.Prepare(texts); err != nil {
		return 0, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors := make([][]float64, len(chunks))
	for i, c := range chunks {
		v, err := emb.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		vectors[i] = v
	}

	if err := ing.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	if err := ing.Init(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("init index: %w", err)
	}
	if err := ing.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	return len(chunks), nil
}

func buildSummarizer(cfg *config.AppConfig) domain.Summarizer {
	return summarizer.NewTextRankSummarizer(
		cfg.Summarizer.Damping,
		cfg.Summarizer.ConvergenceEpsilon,
		cfg.Summarizer.MaxIterations,
	)
}

func pipelineOptions(cfg *config.AppConfig) pipeline.Options {
	return pipeline.Options{
		Retrieval: retrieval.Options{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			HopBudget:           cfg.Retrieval.HopBudget,
			HopEpsilon:          cfg.Retrieval.HopEpsilon,
			CallTimeout:         time.Duration(cfg.Pipeline.CallTimeoutSecs) * time.Second,
		},
		MaxKnowledgePoints: cfg.Ranking.MaxKnowledgePoints,
		MaxKnowledgeChars:  cfg.Ranking.MaxKnowledgeChars,
		MaxSummaryChars:    cfg.Summarizer.MaxSummaryChars,
		BatchWorkers:       cfg.Pipeline.BatchWorkers,
	}
}

func indexType(cfg *config.AppConfig) string {
	if cfg.VectorIndex.Type == "" {
		return "memory"
	}
	return cfg.VectorIndex.Type
}
