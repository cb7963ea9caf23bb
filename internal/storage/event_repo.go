package storage

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/util"
)

// EventRepo is the append-only audit trail of stage transitions and errors.
// Rows are write-once; there is no update or delete path.
type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) WriteEvent(ctx context.Context, taskID, stage, level, message, metaJSON string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO task_events (id, task_id, stage, level, message, meta_json)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,'')::jsonb)`,
		util.NewID("event"), taskID, stage, level, message, metaJSON)
	if err != nil {
		return fmt.Errorf("insert task event: %w", err)
	}
	return nil
}

func (r *EventRepo) ListEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, ts, stage, level, message, COALESCE(meta_json::text,'')
FROM task_events
WHERE task_id=$1
ORDER BY ts ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	defer rows.Close()

	out := make([]models.TaskEvent, 0, 16)
	for rows.Next() {
		var e models.TaskEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.TS, &e.Stage, &e.Level, &e.Message, &e.Meta); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
