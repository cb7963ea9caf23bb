package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/util"
)

type RiskRepo struct {
	db *DB
}

func NewRiskRepo(db *DB) *RiskRepo {
	return &RiskRepo{db: db}
}

func (r *RiskRepo) InsertRisk(ctx context.Context, risk models.Risk) (string, error) {
	id := risk.ID
	if id == "" {
		id = util.NewID("risk")
	}
	flagsJSON := ""
	if len(risk.QCFlags) > 0 {
		b, err := json.Marshal(risk.QCFlags)
		if err != nil {
			return "", fmt.Errorf("marshal qc flags: %w", err)
		}
		flagsJSON = string(b)
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO risks (id, task_id, clause_id, risk_level, risk_type, confidence, summary, suggestion, status, qc_flags_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), $9, NULLIF($10,'')::jsonb)`,
		id, risk.TaskID, risk.ClauseID, string(risk.RiskLevel), risk.RiskType,
		risk.Confidence, risk.Summary, risk.Suggestion, risk.Status, flagsJSON)
	if err != nil {
		return "", fmt.Errorf("insert risk: %w", err)
	}
	return id, nil
}

func (r *RiskRepo) InsertCitation(ctx context.Context, c models.KBCitation) error {
	id := c.ID
	if id == "" {
		id = util.NewID("cit")
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_citations (id, risk_id, chunk_id, score, quote_text, doc_version)
VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.RiskID, c.ChunkID, c.Score, c.QuoteText, c.DocVersion)
	if err != nil {
		return fmt.Errorf("insert kb citation: %w", err)
	}
	return nil
}

func (r *RiskRepo) ListRisks(ctx context.Context, taskID string) ([]models.Risk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, task_id, clause_id, risk_level, risk_type, confidence, summary,
       COALESCE(suggestion,''), status, COALESCE(qc_flags_json::text,''), created_at
FROM risks
WHERE task_id=$1
ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Risk, 0, 16)
	for rows.Next() {
		var risk models.Risk
		var flagsJSON string
		if err := rows.Scan(&risk.ID, &risk.TaskID, &risk.ClauseID, &risk.RiskLevel, &risk.RiskType,
			&risk.Confidence, &risk.Summary, &risk.Suggestion, &risk.Status, &flagsJSON, &risk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		if flagsJSON != "" {
			if err := json.Unmarshal([]byte(flagsJSON), &risk.QCFlags); err != nil {
				return nil, fmt.Errorf("decode qc flags: %w", err)
			}
		}
		out = append(out, risk)
	}
	return out, rows.Err()
}

func (r *RiskRepo) ListCitations(ctx context.Context, riskID string) ([]models.KBCitation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, risk_id, chunk_id, score, quote_text, doc_version
FROM kb_citations
WHERE risk_id=$1`, riskID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()

	out := make([]models.KBCitation, 0, 4)
	for rows.Next() {
		var c models.KBCitation
		if err := rows.Scan(&c.ID, &c.RiskID, &c.ChunkID, &c.Score, &c.QuoteText, &c.DocVersion); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetQCFlags merges flags into qc_flags_json; existing keys are overwritten,
// others preserved, so re-running QC is idempotent.
func (r *RiskRepo) SetQCFlags(ctx context.Context, riskID string, flags map[string]string) error {
	if len(flags) == 0 {
		return nil
	}
	b, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal qc flags: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE risks
SET qc_flags_json = COALESCE(qc_flags_json, '{}'::jsonb) || $2::jsonb
WHERE id=$1`, riskID, string(b))
	if err != nil {
		return fmt.Errorf("set qc flags: %w", err)
	}
	return nil
}

func (r *RiskRepo) DowngradeRiskLevel(ctx context.Context, riskID string, level models.RiskLevel, flags map[string]string) error {
	b, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal downgrade flags: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE risks
SET risk_level=$2,
    qc_flags_json = COALESCE(qc_flags_json, '{}'::jsonb) || $3::jsonb
WHERE id=$1`, riskID, string(level), string(b))
	if err != nil {
		return fmt.Errorf("downgrade risk: %w", err)
	}
	return nil
}

// CountRisksByLevel supports evidence consolidation and report generation.
func (r *RiskRepo) CountRisksByLevel(ctx context.Context, taskID string) (map[models.RiskLevel]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT risk_level, COUNT(*) FROM risks WHERE task_id=$1 GROUP BY risk_level`, taskID)
	if err != nil {
		return nil, fmt.Errorf("count risks: %w", err)
	}
	defer rows.Close()

	out := make(map[models.RiskLevel]int, 4)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scan risk count: %w", err)
		}
		out[models.RiskLevel(level)] = n
	}
	return out, rows.Err()
}
