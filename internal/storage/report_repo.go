package storage

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/util"
)

type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

func (r *ReportRepo) InsertReport(ctx context.Context, taskID, format, objectKey string) (string, error) {
	id := util.NewID("report")
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO reports (id, task_id, format, object_key)
VALUES ($1, $2, $3, $4)`, id, taskID, format, objectKey)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

func (r *ReportRepo) ListReports(ctx context.Context, taskID string) ([]models.Report, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, format, object_key, created_at
FROM reports
WHERE task_id=$1
ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]models.Report, 0, 2)
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.TaskID, &rep.Format, &rep.ObjectKey, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
