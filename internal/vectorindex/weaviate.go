package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"

	"finqa/internal/domain"
)

// Weaviate queries an existing Weaviate class through the official client.
// The class is expected to carry chunkId, text, sourceDoc and page properties;
// ingestion into the class is managed outside this adapter.
type Weaviate struct {
	client    *weaviate.Client
	className string
	timeout   time.Duration
}

type WeaviateConfig struct {
	Host      string
	Scheme    string
	APIKey    string
	ClassName string
	Timeout   time.Duration
}

func NewWeaviate(cfg WeaviateConfig) (*Weaviate, error) {
	if cfg.Host == "" {
		return nil, errors.New("weaviate host is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.ClassName == "" {
		cfg.ClassName = "FinancialChunk"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	var authConfig auth.Config
	if cfg.APIKey != "" {
		authConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:       cfg.Host,
		Scheme:     cfg.Scheme,
		AuthConfig: authConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Weaviate{client: client, className: cfg.ClassName, timeout: cfg.Timeout}, nil
}

// Ready reports whether the Weaviate instance accepts queries.
func (w *Weaviate) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return errors.New("weaviate not ready")
	}
	return nil
}

func (w *Weaviate) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	vec := make([]float32, len(vector))
	for i, v := range vector {
		vec[i] = float32(v)
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "text"},
		{Name: "sourceDoc"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearVector(nearVector).
		WithFields(fields...).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", result.Errors[0].Message)
	}

	hits := make([]domain.SearchHit, 0, topK)
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	items, ok := data[w.className].([]interface{})
	if !ok {
		return hits, nil
	}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		chunk := domain.Chunk{}
		if v, ok := obj["chunkId"].(string); ok {
			chunk.ID = v
		}
		if v, ok := obj["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := obj["sourceDoc"].(string); ok {
			chunk.SourceDoc = v
		}
		if v, ok := obj["page"].(float64); ok {
			chunk.Page = int(v)
		}
		similarity := 0.0
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if c, ok := add["certainty"].(float64); ok {
				// Weaviate reports certainty as (1+cosine)/2; map back to cosine.
				similarity = 2*c - 1
			}
		}
		hits = append(hits, domain.SearchHit{Chunk: chunk, Similarity: similarity})
	}
	return hits, nil
}
