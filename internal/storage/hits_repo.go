package storage

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/util"
)

// HitsRepo holds the intermediate per-clause results handed between stages:
// rule hints written by RULE_SCORING and KB hits written by KB_RETRIEVAL.
type HitsRepo struct {
	db *DB
}

func NewHitsRepo(db *DB) *HitsRepo {
	return &HitsRepo{db: db}
}

func (r *HitsRepo) InsertRuleHit(ctx context.Context, h models.RuleHit) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO rule_hits (id, task_id, clause_id, rule_key, hint)
VALUES ($1, $2, $3, $4, $5)`,
		util.NewID("rule"), h.TaskID, h.ClauseID, h.RuleKey, h.Hint)
	if err != nil {
		return fmt.Errorf("insert rule hit: %w", err)
	}
	return nil
}

func (r *HitsRepo) ListRuleHints(ctx context.Context, taskID, clauseID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT hint FROM rule_hits WHERE task_id=$1 AND clause_id=$2 ORDER BY rule_key ASC`,
		taskID, clauseID)
	if err != nil {
		return nil, fmt.Errorf("list rule hints: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 4)
	for rows.Next() {
		var hint string
		if err := rows.Scan(&hint); err != nil {
			return nil, fmt.Errorf("scan rule hint: %w", err)
		}
		out = append(out, hint)
	}
	return out, rows.Err()
}

func (r *HitsRepo) ListRuleHits(ctx context.Context, taskID, clauseID string) ([]models.RuleHit, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, clause_id, rule_key, hint
FROM rule_hits
WHERE task_id=$1 AND clause_id=$2
ORDER BY rule_key ASC`, taskID, clauseID)
	if err != nil {
		return nil, fmt.Errorf("list rule hits: %w", err)
	}
	defer rows.Close()

	out := make([]models.RuleHit, 0, 4)
	for rows.Next() {
		var h models.RuleHit
		if err := rows.Scan(&h.ID, &h.TaskID, &h.ClauseID, &h.RuleKey, &h.Hint); err != nil {
			return nil, fmt.Errorf("scan rule hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HitsRepo) InsertKBHit(ctx context.Context, h models.KBHit) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_hits (id, task_id, clause_id, chunk_id, score, quote_text, doc_title, doc_version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		util.NewID("kbhit"), h.TaskID, h.ClauseID, h.ChunkID, h.Score,
		util.TruncateText(h.QuoteText, 500), h.DocTitle, h.DocVersion)
	if err != nil {
		return fmt.Errorf("insert kb hit: %w", err)
	}
	return nil
}

func (r *HitsRepo) ListKBHits(ctx context.Context, taskID, clauseID string, limit int) ([]models.KBHit, error) {
	if limit <= 0 {
		limit = 6
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, clause_id, chunk_id, score, quote_text, doc_title, doc_version
FROM kb_hits
WHERE task_id=$1 AND clause_id=$2
ORDER BY score ASC
LIMIT $3`, taskID, clauseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list kb hits: %w", err)
	}
	defer rows.Close()

	out := make([]models.KBHit, 0, limit)
	for rows.Next() {
		var h models.KBHit
		if err := rows.Scan(&h.ID, &h.TaskID, &h.ClauseID, &h.ChunkID, &h.Score, &h.QuoteText, &h.DocTitle, &h.DocVersion); err != nil {
			return nil, fmt.Errorf("scan kb hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
