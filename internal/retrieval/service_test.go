package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precheck/internal/gateway"
	"precheck/internal/models"
	"precheck/internal/vector"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSearcher struct {
	hits    []models.KBHit
	filters vector.SearchFilters
}

func (f *fakeSearcher) SearchChunks(_ context.Context, _ []float32, _ int, filters vector.SearchFilters) ([]models.KBHit, error) {
	f.filters = filters
	return f.hits, nil
}

type fakeReranker struct {
	results []gateway.RerankResult
	err     error
	calls   int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, _ []gateway.RerankDocument, _ int) ([]gateway.RerankResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func sampleHits() []models.KBHit {
	return []models.KBHit{
		{ChunkID: "chk_a", QuoteText: "liability cap", Score: 0.10},
		{ChunkID: "chk_b", QuoteText: "termination notice", Score: 0.15},
		{ChunkID: "chk_c", QuoteText: "payment terms", Score: 0.20},
	}
}

func TestRetrieveRerankOrdering(t *testing.T) {
	searcher := &fakeSearcher{hits: sampleHits()}
	reranker := &fakeReranker{results: []gateway.RerankResult{
		{Index: 2, RelevanceScore: 0.9},
		{Index: 0, RelevanceScore: 0.8},
		{Index: 1, RelevanceScore: 0.1},
	}}
	svc := NewService(&fakeEmbedder{}, reranker, searcher, nil)

	hits, err := svc.Retrieve(context.Background(), "limitation of liability", nil, Options{TopK: 20, TopN: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "chk_c", hits[0].ChunkID)
	assert.Equal(t, "chk_a", hits[1].ChunkID)
}

func TestRetrieveRerankFailureFallsBackToVectorOrder(t *testing.T) {
	searcher := &fakeSearcher{hits: sampleHits()}
	reranker := &fakeReranker{err: fmt.Errorf("rerank endpoint down")}
	svc := NewService(&fakeEmbedder{}, reranker, searcher, nil)

	hits, err := svc.Retrieve(context.Background(), "limitation of liability", nil, Options{TopK: 20, TopN: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "chk_a", hits[0].ChunkID)
	assert.Equal(t, "chk_b", hits[1].ChunkID)
}

func TestRetrieveSkipsRerankWithoutNarrowing(t *testing.T) {
	for _, opts := range []Options{
		{TopK: 3, TopN: 3},
		{TopK: 3},
		{},
	} {
		searcher := &fakeSearcher{hits: sampleHits()}
		reranker := &fakeReranker{results: []gateway.RerankResult{
			{Index: 2, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.8},
		}}
		svc := NewService(&fakeEmbedder{}, reranker, searcher, nil)

		hits, err := svc.Retrieve(context.Background(), "limitation of liability", nil, opts)
		require.NoError(t, err)
		assert.Equal(t, 0, reranker.calls, "opts %+v", opts)
		require.Len(t, hits, 3)
		assert.Equal(t, "chk_a", hits[0].ChunkID)
		assert.Equal(t, "chk_b", hits[1].ChunkID)
		assert.Equal(t, "chk_c", hits[2].ChunkID)
	}
}

func TestRetrievePassesSnapshotFilter(t *testing.T) {
	searcher := &fakeSearcher{hits: sampleHits()}
	svc := NewService(&fakeEmbedder{}, &fakeReranker{}, searcher, nil)

	_, err := svc.Retrieve(context.Background(), "indemnity", []string{"col_1"}, Options{TaskID: "task_1"})
	require.NoError(t, err)
	assert.Equal(t, "task_1", searcher.filters.TaskID)
	assert.Equal(t, []string{"col_1"}, searcher.filters.CollectionIDs)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	svc := NewService(&fakeEmbedder{}, &fakeReranker{}, &fakeSearcher{}, nil)
	_, err := svc.Retrieve(context.Background(), "   \x00 ", nil, Options{})
	assert.Error(t, err)
}

func TestRetrieveForClauseLimitsHints(t *testing.T) {
	searcher := &fakeSearcher{hits: sampleHits()}
	reranker := &fakeReranker{err: fmt.Errorf("down")}
	svc := NewService(&fakeEmbedder{}, reranker, searcher, nil)

	clause := models.Clause{ClauseID: "c1", Text: "The supplier shall indemnify the buyer."}
	hints := []models.RuleHit{
		{Hint: "indemnity scope"},
		{Hint: "cap missing"},
		{Hint: "mutual vs one-way"},
		{Hint: "this one is dropped"},
	}
	hits, err := svc.RetrieveForClause(context.Background(), clause, hints, nil, Options{TopN: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
