package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"precheck/internal/gateway"
	"precheck/internal/models"
	"precheck/internal/util"
	"precheck/internal/vector"
)

const maxQueryLength = 1000

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, documents []gateway.RerankDocument, topN int) ([]gateway.RerankResult, error)
}

type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVec []float32, topK int, filters vector.SearchFilters) ([]models.KBHit, error)
}

type Options struct {
	TopK int
	TopN int
	// TaskID enables the frozen-snapshot version filter.
	TaskID string
}

// Service implements the embed -> vector search -> rerank retrieval path.
// A rerank failure degrades to the vector ordering instead of failing the call.
type Service struct {
	embedder Embedder
	reranker Reranker
	searcher ChunkSearcher
	logger   *slog.Logger
}

func NewService(embedder Embedder, reranker Reranker, searcher ChunkSearcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, reranker: reranker, searcher: searcher, logger: logger}
}

func (s *Service) Retrieve(ctx context.Context, query string, collectionIDs []string, opts Options) ([]models.KBHit, error) {
	query = util.SanitizeText(query)
	if query == "" {
		return nil, fmt.Errorf("empty retrieval query")
	}
	if len(query) > maxQueryLength {
		query = util.TruncateText(query, maxQueryLength)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 20
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	hits, err := s.searcher.SearchChunks(ctx, vecs[0], topK, vector.SearchFilters{
		CollectionIDs: collectionIDs,
		TaskID:        opts.TaskID,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return hits, nil
	}

	// Rerank only narrows a wider candidate set. With TopN unset or equal to
	// TopK the vector ordering stands.
	if opts.TopN > 0 && opts.TopN < topK {
		return s.rerank(ctx, query, hits, opts.TopN), nil
	}
	return hits, nil
}

// RetrieveForClause builds the retrieval query from the clause text plus up to
// three rule hints, then runs the standard path.
func (s *Service) RetrieveForClause(ctx context.Context, clause models.Clause, hints []models.RuleHit, collectionIDs []string, opts Options) ([]models.KBHit, error) {
	parts := []string{clause.Text}
	for i, h := range hints {
		if i >= 3 {
			break
		}
		if strings.TrimSpace(h.Hint) != "" {
			parts = append(parts, h.Hint)
		}
	}
	return s.Retrieve(ctx, strings.Join(parts, "\n"), collectionIDs, opts)
}

func (s *Service) rerank(ctx context.Context, query string, hits []models.KBHit, topN int) []models.KBHit {
	docs := make([]gateway.RerankDocument, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, gateway.RerankDocument{ID: h.ChunkID, Text: h.QuoteText})
	}
	results, err := s.reranker.Rerank(ctx, query, docs, topN)
	if err != nil {
		s.logger.Warn("rerank failed, falling back to vector order", "error", err)
		if topN > len(hits) {
			topN = len(hits)
		}
		return hits[:topN]
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	out := make([]models.KBHit, 0, topN)
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(hits) {
			continue
		}
		out = append(out, hits[r.Index])
		if len(out) >= topN {
			break
		}
	}
	if len(out) == 0 {
		if topN > len(hits) {
			topN = len(hits)
		}
		return hits[:topN]
	}
	return out
}
