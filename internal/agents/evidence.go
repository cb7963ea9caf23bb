package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"precheck/internal/models"
)

// EvidenceActivity consolidates the per-clause results into task level
// counters and records them on the audit trail for the report stage.
func (a *Agents) EvidenceActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusEvidencing), func(ctx context.Context) (map[string]any, error) {
		counts, err := a.risks.CountRisksByLevel(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		risks, err := a.risks.ListRisks(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		citationCount := 0
		evidenced := 0
		for _, risk := range risks {
			citations, err := a.risks.ListCitations(ctx, risk.ID)
			if err != nil {
				return nil, err
			}
			citationCount += len(citations)
			if len(citations) > 0 {
				evidenced++
			}
		}

		summary := map[string]any{
			"risk_count":      len(risks),
			"citation_count":  citationCount,
			"evidenced_risks": evidenced,
			"by_level": map[string]int{
				"HIGH":   counts[models.RiskHigh],
				"MEDIUM": counts[models.RiskMedium],
				"LOW":    counts[models.RiskLow],
				"INFO":   counts[models.RiskInfo],
			},
		}
		meta, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("marshal evidence summary: %w", err)
		}
		a.writeEvent(ctx, job.TaskID, string(models.StatusEvidencing), "INFO", "evidence consolidated", string(meta))
		return summary, nil
	}), nil
}
