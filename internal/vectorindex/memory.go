package vectorindex

import (
	"context"
	"errors"
	"sort"
	"sync"

	"finqa/internal/domain"
)

// Memory is a simple in-memory vector store using brute-force cosine similarity.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dimension
	m.vectors = nil
	m.chunks = nil
	return nil
}

func (m *Memory) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		if len(v) != m.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	m.chunks = append(m.chunks, chunks...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

// Search scans every stored vector (vectors are assumed L2-normalized, so the
// dot product is the cosine similarity). Equal similarities order by ascending
// chunk id so repeated searches return identical slices.
func (m *Memory) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scores := make([]float64, len(m.vectors))
	for i := range m.vectors {
		scores[i] = dot(m.vectors[i], vector)
	}
	idxs := make([]int, len(m.vectors))
	for i := range idxs {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool {
		ia, ib := idxs[a], idxs[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return m.chunks[ia].ID < m.chunks[ib].ID
	})
	if topK > len(idxs) {
		topK = len(idxs)
	}
	hits := make([]domain.SearchHit, 0, topK)
	for _, j := range idxs[:topK] {
		hits = append(hits, domain.SearchHit{Chunk: m.chunks[j], Similarity: scores[j]})
	}
	return hits, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = nil
	m.chunks = nil
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
