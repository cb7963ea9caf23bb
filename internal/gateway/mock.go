package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// MockProvider returns deterministic outputs for tests and keyless dev setups.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1024
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Chat(_ context.Context, _ []ChatMessage, _ ChatOptions) (string, error) {
	return `{"risks": []}`, nil
}

func (m *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vectors = append(vectors, deterministicVector(t, m.dim))
	}
	return vectors, nil
}

func (m *MockProvider) Rerank(_ context.Context, _ string, documents []RerankDocument, topN int) ([]RerankResult, error) {
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	out := make([]RerankResult, 0, topN)
	for i := 0; i < topN; i++ {
		out = append(out, RerankResult{Index: i, RelevanceScore: 1.0 - float64(i)*0.01})
	}
	return out, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) Health {
	return Health{Chat: true, Embed: true, Rerank: true}
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
	return v
}
