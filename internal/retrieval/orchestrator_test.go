package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
)

type fakeEmbedder struct {
	calls []string
	fn    func(text string) ([]float64, error)
}

func (f *fakeEmbedder) Name() string             { return "fake" }
func (f *fakeEmbedder) Prepare(_ []string) error { return nil }
func (f *fakeEmbedder) Dimension() int           { return 1 }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls = append(f.calls, text)
	return f.fn(text)
}

type fakeIndex struct {
	fn func(vector []float64, topK int) ([]domain.SearchHit, error)
}

func (f *fakeIndex) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchHit, error) {
	return f.fn(vector, topK)
}

func testOptions() Options {
	return Options{
		TopK:                10,
		SimilarityThreshold: 0.5,
		HopBudget:           3,
		HopEpsilon:          0.02,
		CallTimeout:         time.Second,
	}
}

func hit(id, text string, sim float64) domain.SearchHit {
	return domain.SearchHit{Chunk: domain.Chunk{ID: id, Text: text, SourceDoc: "doc", Page: 1}, Similarity: sim}
}

func TestRetrieveQueryIntentSearchesOnce(t *testing.T) {
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) { return []float64{1}, nil }}
	idx := &fakeIndex{fn: func([]float64, int) ([]domain.SearchHit, error) {
		return []domain.SearchHit{
			hit("c2", "strong match", 0.9),
			hit("c1", "weak match", 0.45),
		}, nil
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{Kind: domain.IntentQuery, SubQuestions: []string{"what are the branch opening hours?"}}
	results := o.Retrieve(context.Background(), it)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Candidates, 1)
	assert.Equal(t, "c2", results[0].Candidates[0].Chunk.ID)
	assert.Equal(t, 1, results[0].Candidates[0].Hop)
	assert.Equal(t, 0, results[0].Candidates[0].SubQuestion)
	assert.Equal(t, []string{"what are the branch opening hours?"}, emb.calls)
}

func TestRetrieveReasoningHopsWithDerivedFollowUp(t *testing.T) {
	n := 0
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) {
		n++
		return []float64{float64(n)}, nil
	}}
	idx := &fakeIndex{fn: func(v []float64, _ int) ([]domain.SearchHit, error) {
		switch v[0] {
		case 1:
			return []domain.SearchHit{hit("c1", "loan rates loan application interest", 0.60)}, nil
		case 2:
			return []domain.SearchHit{hit("c2", "income proof income documents", 0.70)}, nil
		default:
			return []domain.SearchHit{hit("c3", "final evidence", 0.80)}, nil
		}
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{
		Kind:         domain.IntentReasoning,
		SubQuestions: []string{"loan eligibility"},
		Constraints:  []domain.Constraint{{Kind: "amount", Value: "$50,000"}},
	}
	results := o.Retrieve(context.Background(), it)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, emb.calls, 3)
	assert.Equal(t, "loan eligibility", emb.calls[0])
	assert.Equal(t, "loan application interest $50,000", emb.calls[1])
	assert.Equal(t, "income documents proof $50,000", emb.calls[2])

	require.Len(t, results[0].Candidates, 3)
	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, want, results[0].Candidates[i].Hop)
	}
}

func TestRetrieveStopsWhenGainBelowEpsilon(t *testing.T) {
	n := 0
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) {
		n++
		return []float64{float64(n)}, nil
	}}
	idx := &fakeIndex{fn: func(v []float64, _ int) ([]domain.SearchHit, error) {
		if v[0] == 1 {
			return []domain.SearchHit{hit("c1", "loan terms apply here", 0.60)}, nil
		}
		return []domain.SearchHit{hit("c2", "barely better", 0.61)}, nil
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{Kind: domain.IntentReasoning, SubQuestions: []string{"loan eligibility"}}
	results := o.Retrieve(context.Background(), it)

	require.NoError(t, results[0].Err)
	assert.Len(t, emb.calls, 2)
	assert.Len(t, results[0].Candidates, 2)
}

func TestRetrieveDegradesFailingBranchOnly(t *testing.T) {
	emb := &fakeEmbedder{fn: func(text string) ([]float64, error) {
		if text == "bad question?" {
			return nil, errors.New("backend down")
		}
		return []float64{1}, nil
	}}
	idx := &fakeIndex{fn: func([]float64, int) ([]domain.SearchHit, error) {
		return []domain.SearchHit{hit("c1", "fine", 0.9)}, nil
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{
		Kind:         domain.IntentMultiIntent,
		SubQuestions: []string{"good question?", "bad question?"},
	}
	results := o.Retrieve(context.Background(), it)

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Candidates)

	require.Error(t, results[1].Err)
	assert.True(t, errors.Is(results[1].Err, domain.ErrEmbeddingUnavailable))
	assert.Empty(t, results[1].Candidates)
}

func TestRetrieveDegradesOnIndexError(t *testing.T) {
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) { return []float64{1}, nil }}
	idx := &fakeIndex{fn: func([]float64, int) ([]domain.SearchHit, error) {
		return nil, fmt.Errorf("connection refused")
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{Kind: domain.IntentQuery, SubQuestions: []string{"anything"}}
	results := o.Retrieve(context.Background(), it)

	require.Error(t, results[0].Err)
	assert.True(t, errors.Is(results[0].Err, domain.ErrIndexUnavailable))
	assert.Empty(t, results[0].Candidates)
}

func TestRetrieveCapsCandidatesPerBranch(t *testing.T) {
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) { return []float64{1}, nil }}
	// Index misbehaves and returns more hits than asked for.
	idx := &fakeIndex{fn: func([]float64, int) ([]domain.SearchHit, error) {
		return []domain.SearchHit{
			hit("c1", "a", 0.9), hit("c2", "b", 0.8), hit("c3", "c", 0.7), hit("c4", "d", 0.6),
		}, nil
	}}
	opts := testOptions()
	opts.TopK = 2
	opts.HopBudget = 1
	o := NewOrchestrator(emb, idx, opts, nil)

	it := domain.Intent{Kind: domain.IntentQuery, SubQuestions: []string{"q"}}
	results := o.Retrieve(context.Background(), it)

	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Candidates, 2)
}

func TestRetrieveAllBelowThresholdIsEmptyNotError(t *testing.T) {
	emb := &fakeEmbedder{fn: func(string) ([]float64, error) { return []float64{1}, nil }}
	idx := &fakeIndex{fn: func([]float64, int) ([]domain.SearchHit, error) {
		return []domain.SearchHit{hit("c1", "far", 0.2), hit("c2", "farther", 0.1)}, nil
	}}
	o := NewOrchestrator(emb, idx, testOptions(), nil)

	it := domain.Intent{Kind: domain.IntentReasoning, SubQuestions: []string{"q"}}
	results := o.Retrieve(context.Background(), it)

	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Candidates)
	// No surviving hit means nothing to hop from.
	assert.Len(t, emb.calls, 1)
}

func TestFollowUpQuery(t *testing.T) {
	got := followUpQuery("loan rates loan application interest", []domain.Constraint{{Kind: "amount", Value: "$50,000"}})
	assert.Equal(t, "loan application interest $50,000", got)

	// Ties break alphabetically.
	assert.Equal(t, []string{"alpha", "beta"}, topTerms("beta alpha", 3))
	assert.Empty(t, followUpQuery("the of and", nil))
}
