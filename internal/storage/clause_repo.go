package storage

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/util"
)

type ClauseRepo struct {
	db *DB
}

func NewClauseRepo(db *DB) *ClauseRepo {
	return &ClauseRepo{db: db}
}

func (r *ClauseRepo) InsertClauses(ctx context.Context, taskID string, clauses []models.Clause) error {
	if len(clauses) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert clauses tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range clauses {
		_, err := tx.Exec(ctx, `
INSERT INTO clauses (id, task_id, clause_id, title, text, order_no)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6)
ON CONFLICT (task_id, clause_id) DO NOTHING`,
			util.NewID("id"), taskID, c.ClauseID, c.Title, util.SanitizeText(c.Text), c.OrderNo)
		if err != nil {
			return fmt.Errorf("insert clause %s: %w", c.ClauseID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clauses tx: %w", err)
	}
	return nil
}

func (r *ClauseRepo) ListClauses(ctx context.Context, taskID string) ([]models.Clause, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, clause_id, COALESCE(title,''), text, order_no
FROM clauses
WHERE task_id=$1
ORDER BY order_no ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Clause, 0, 32)
	for rows.Next() {
		var c models.Clause
		if err := rows.Scan(&c.ID, &c.TaskID, &c.ClauseID, &c.Title, &c.Text, &c.OrderNo); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
