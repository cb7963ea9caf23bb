package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"precheck/internal/models"
	"precheck/internal/util"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskRepo struct {
	db *DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

type CreateTaskParams struct {
	ContractVersionID string
	KBCollectionIDs   []string
	KBMode            models.KBMode
	RulesetVersion    string
	ModelConfigJSON   string
	PromptVersion     string
}

// CreateTask inserts the task row plus its frozen config and KB snapshots.
// The snapshot rows are the contract all later retrieval and QC honor.
func (r *TaskRepo) CreateTask(ctx context.Context, p CreateTaskParams) (string, error) {
	taskID := util.NewID("task")
	snapshotID := util.NewID("snap")

	collectionsJSON := "[]"
	if len(p.KBCollectionIDs) > 0 {
		parts := make([]string, 0, len(p.KBCollectionIDs))
		for _, id := range p.KBCollectionIDs {
			parts = append(parts, fmt.Sprintf("%q", id))
		}
		collectionsJSON = "[" + strings.Join(parts, ",") + "]"
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin create task tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
INSERT INTO config_snapshots (id, ruleset_version, model_config_json, prompt_template_version, kb_collections_json)
VALUES ($1, $2, $3::jsonb, $4, $5::jsonb)`,
		snapshotID, p.RulesetVersion, p.ModelConfigJSON, p.PromptVersion, collectionsJSON)
	if err != nil {
		return "", fmt.Errorf("insert config snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO precheck_tasks (id, contract_version_id, status, progress, current_stage, config_snapshot_id, kb_mode)
VALUES ($1, $2, 'QUEUED', 0, 'QUEUED', $3, $4)`,
		taskID, p.ContractVersionID, snapshotID, string(p.KBMode))
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	for _, collectionID := range p.KBCollectionIDs {
		var version int
		err := tx.QueryRow(ctx, `SELECT version FROM kb_collections WHERE id=$1`, collectionID).Scan(&version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return "", fmt.Errorf("read collection version: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO task_kb_snapshots (id, task_id, collection_id, collection_version)
VALUES ($1, $2, $3, $4)`,
			util.NewID("snap"), taskID, collectionID, version)
		if err != nil {
			return "", fmt.Errorf("insert kb snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create task tx: %w", err)
	}
	return taskID, nil
}

func (r *TaskRepo) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	var t models.Task
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, contract_version_id, status, progress, current_stage, cancel_requested,
       kb_mode, config_snapshot_id, COALESCE(error_message,''), created_at, updated_at
FROM precheck_tasks
WHERE id=$1`, taskID).
		Scan(&t.ID, &t.ContractVersionID, &t.Status, &t.Progress, &t.CurrentStage, &t.CancelRequested,
			&t.KBMode, &t.ConfigSnapshotID, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

type TaskStatusUpdate struct {
	Status       *models.TaskStatus
	Progress     *int
	CurrentStage *string
	ErrorMessage *string
}

func (r *TaskRepo) UpdateTaskStatus(ctx context.Context, taskID string, u TaskStatusUpdate) error {
	setClauses := make([]string, 0, 4)
	args := make([]any, 0, 5)
	i := 1

	if u.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status=$%d", i))
		args = append(args, string(*u.Status))
		i++
	}
	if u.Progress != nil {
		setClauses = append(setClauses, fmt.Sprintf("progress=$%d", i))
		args = append(args, *u.Progress)
		i++
	}
	if u.CurrentStage != nil {
		setClauses = append(setClauses, fmt.Sprintf("current_stage=$%d", i))
		args = append(args, *u.CurrentStage)
		i++
	}
	if u.ErrorMessage != nil {
		setClauses = append(setClauses, fmt.Sprintf("error_message=$%d", i))
		args = append(args, *u.ErrorMessage)
		i++
	}
	if len(setClauses) == 0 {
		return nil
	}
	setClauses = append(setClauses, "updated_at=NOW()")
	args = append(args, taskID)

	query := fmt.Sprintf("UPDATE precheck_tasks SET %s WHERE id=$%d", strings.Join(setClauses, ", "), i)
	if _, err := r.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// SetCancelRequested is the only external mutation entry point into the
// orchestrator's state machine; the flag is polled at stage boundaries.
func (r *TaskRepo) SetCancelRequested(ctx context.Context, taskID string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE precheck_tasks SET cancel_requested=TRUE, updated_at=NOW() WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("set cancel requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepo) ListSnapshots(ctx context.Context, taskID string) ([]models.TaskKBSnapshot, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, collection_id, collection_version
FROM task_kb_snapshots
WHERE task_id=$1`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list kb snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]models.TaskKBSnapshot, 0, 4)
	for rows.Next() {
		var s models.TaskKBSnapshot
		if err := rows.Scan(&s.ID, &s.TaskID, &s.CollectionID, &s.CollectionVersion); err != nil {
			return nil, fmt.Errorf("scan kb snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SnapshotVersion returns the frozen collection version for a task, or
// ok=false when the task has no snapshot for that collection.
func (r *TaskRepo) SnapshotVersion(ctx context.Context, taskID, collectionID string) (int, bool, error) {
	var version int
	err := r.db.Pool.QueryRow(ctx, `
SELECT collection_version FROM task_kb_snapshots WHERE task_id=$1 AND collection_id=$2`,
		taskID, collectionID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get snapshot version: %w", err)
	}
	return version, true, nil
}
