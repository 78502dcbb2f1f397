package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTFIDFEmbedBeforePrepareFails(t *testing.T) {
	e := NewTFIDFEmbedder()
	_, err := e.Embed(context.Background(), "loan")
	assert.Error(t, err)
}

func TestTFIDFPrepareAndEmbed(t *testing.T) {
	e := NewTFIDFEmbedder()
	corpus := []string{
		"loan interest rates",
		"deposit accounts savings",
		"loan application requirements",
	}
	require.NoError(t, e.Prepare(corpus))
	assert.Equal(t, 8, e.Dimension())

	vec, err := e.Embed(context.Background(), "loan interest")
	require.NoError(t, err)
	require.Len(t, vec, 8)

	norm := 0.0
	nonZero := 0
	for _, v := range vec {
		norm += v * v
		if v != 0 {
			nonZero++
		}
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	assert.Equal(t, 2, nonZero)
}

func TestTFIDFUnknownTokensYieldZeroVector(t *testing.T) {
	e := NewTFIDFEmbedder()
	require.NoError(t, e.Prepare([]string{"loan interest rates"}))

	vec, err := e.Embed(context.Background(), "zebra quark")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestTFIDFEmbedIsDeterministic(t *testing.T) {
	e := NewTFIDFEmbedder()
	require.NoError(t, e.Prepare([]string{"loan interest rates", "deposit savings"}))

	a, err := e.Embed(context.Background(), "loan savings")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "loan savings")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTFIDFEmptyCorpus(t *testing.T) {
	e := NewTFIDFEmbedder()
	assert.Error(t, e.Prepare(nil))
}
