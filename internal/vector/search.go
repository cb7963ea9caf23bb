package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"precheck/internal/models"
)

type SearchFilters struct {
	CollectionIDs []string
	// TaskID restricts results to chunks whose document version matches the
	// task's frozen KB snapshot. Empty means no snapshot constraint.
	TaskID string
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks returns up to topK chunks ordered by ascending cosine distance
// (lower score = more similar).
func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, topK int, filters SearchFilters) ([]models.KBHit, error) {
	if topK <= 0 {
		topK = 20
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{vecLiteral, topK}
	filterSQL := ""

	if len(filters.CollectionIDs) > 0 {
		args = append(args, filters.CollectionIDs)
		filterSQL += fmt.Sprintf(" AND d.collection_id = ANY($%d)", len(args))
	}
	if strings.TrimSpace(filters.TaskID) != "" {
		args = append(args, filters.TaskID)
		filterSQL += fmt.Sprintf(`
  AND EXISTS (
    SELECT 1 FROM task_kb_snapshots tks
    WHERE tks.task_id = $%d
      AND tks.collection_id = d.collection_id
      AND d.version = tks.collection_version
  )`, len(args))
	}

	query := `
SELECT c.id,
       c.text,
       d.title,
       d.version,
       e.embedding <=> $1::vector AS score
FROM kb_chunks c
JOIN kb_documents d ON c.document_id = d.id
JOIN kb_embeddings e ON c.id = e.chunk_id
WHERE TRUE` + filterSQL + `
ORDER BY e.embedding <=> $1::vector
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.KBHit, 0, topK)
	for rows.Next() {
		var h models.KBHit
		if err := rows.Scan(&h.ChunkID, &h.QuoteText, &h.DocTitle, &h.DocVersion, &h.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
