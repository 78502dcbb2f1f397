package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finqa/internal/domain"
	"finqa/internal/metrics"
)

// CachedEmbedder decorates an Embedder with a Redis vector cache. Cache
// failures fall through to the inner embedder and never fail the call.
type CachedEmbedder struct {
	inner  domain.Embedder
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder wraps inner with a Redis cache under the given key prefix.
func NewCachedEmbedder(inner domain.Embedder, rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Name() string { return c.inner.Name() }

func (c *CachedEmbedder) Prepare(corpus []string) error { return c.inner.Prepare(corpus) }

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// Embed serves the vector from Redis when present, otherwise embeds through
// the inner client and stores the result best-effort.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jerr := json.Unmarshal(data, &vec); jerr == nil {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return vec, nil
		}
		c.logger.Debug("embedding cache entry corrupt", zap.String("key", key))
		metrics.EmbeddingCacheHits.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
	default:
		metrics.EmbeddingCacheHits.WithLabelValues("error").Inc()
		c.logger.Debug("embedding cache unavailable", zap.Error(err))
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if data, jerr := json.Marshal(vec); jerr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Debug("embedding cache store failed", zap.Error(serr))
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha1.Sum([]byte(c.inner.Name() + "\x00" + text))
	return c.prefix + hex.EncodeToString(h[:])
}
