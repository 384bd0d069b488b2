package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultDimension is the length of vectors produced by the default mock behavior.
const DefaultDimension = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
// It is safe for concurrent use by ingestion worker pools.
type MockEmbedder struct {
	// EmbedPassageFunc is called by EmbedPassage if set.
	EmbedPassageFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedPassagesFunc is called by EmbedPassages if set.
	EmbedPassagesFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQueryFunc is called by EmbedQuery if set.
	EmbedQueryFunc func(ctx context.Context, text string) ([]float32, error)

	mu        sync.Mutex
	callCount int
	queries   []string
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedPassage generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	m.record("")

	if m.EmbedPassageFunc != nil {
		return m.EmbedPassageFunc(ctx, text)
	}
	return Vector(text, DefaultDimension), nil
}

// EmbedPassages generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	m.record("")

	if m.EmbedPassagesFunc != nil {
		return m.EmbedPassagesFunc(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = Vector(text, DefaultDimension)
	}
	return embeddings, nil
}

// EmbedQuery generates a deterministic embedding and records the query text.
func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.record(text)

	if m.EmbedQueryFunc != nil {
		return m.EmbedQueryFunc(ctx, text)
	}
	return Vector(text, DefaultDimension), nil
}

func (m *MockEmbedder) record(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if query != "" {
		m.queries = append(m.queries, query)
	}
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Queries returns the texts passed to EmbedQuery, in call order.
func (m *MockEmbedder) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.queries = nil
	m.EmbedPassageFunc = nil
	m.EmbedPassagesFunc = nil
	m.EmbedQueryFunc = nil
}

// Vector creates a deterministic unit-length embedding from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func Vector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}
