package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Name() string             { return "counting" }
func (c *countingEmbedder) Prepare(_ []string) error { return nil }
func (c *countingEmbedder) Dimension() int           { return 2 }

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	c.calls++
	return []float64{1, 2}, nil
}

func TestCachedEmbedderServesSecondCallFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingEmbedder{}
	ce := NewCachedEmbedder(inner, rdb, "finqa:emb:", time.Hour, nil)

	ctx := context.Background()
	first, err := ce.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	second, err := ce.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	_, err = ce.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderFallsThroughWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	inner := &countingEmbedder{}
	ce := NewCachedEmbedder(inner, rdb, "finqa:emb:", time.Hour, nil)

	ctx := context.Background()
	vec, err := ce.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)

	_, err = ce.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderIgnoresCorruptEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingEmbedder{}
	ce := NewCachedEmbedder(inner, rdb, "finqa:emb:", time.Hour, nil)

	require.NoError(t, mr.Set(ce.key("hello"), "not json"))

	vec, err := ce.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderDelegates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingEmbedder{}
	ce := NewCachedEmbedder(inner, rdb, "finqa:emb:", time.Hour, nil)

	assert.Equal(t, "counting", ce.Name())
	assert.Equal(t, 2, ce.Dimension())
	assert.NoError(t, ce.Prepare(nil))
}
