package agents

import (
	"context"
	"fmt"

	"precheck/internal/gateway"
	"precheck/internal/llm"
	"precheck/internal/models"
)

const (
	riskStatusOpen        = "OPEN"
	riskStatusNeedsReview = "NEEDS_REVIEW"
	riskTypeLLMError      = "LLM_ERROR"
)

var riskChatOptions = gateway.ChatOptions{Temperature: 0.1, MaxTokens: 2048, JSONMode: true}

// LLMRiskActivity runs the risk model per clause: one attempt, one repair
// round-trip on invalid output, then a degraded placeholder risk. A clause
// level model failure never fails the stage.
func (a *Agents) LLMRiskActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusLLMRisk), func(ctx context.Context) (map[string]any, error) {
		clauses, err := a.clauses.ListClauses(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		riskCount := 0
		degraded := 0
		for _, c := range clauses {
			hints, err := a.hits.ListRuleHits(ctx, job.TaskID, c.ClauseID)
			if err != nil {
				return nil, err
			}
			kbHits, err := a.hits.ListKBHits(ctx, job.TaskID, c.ClauseID, a.cfg.KBTopN)
			if err != nil {
				return nil, err
			}

			analysis, analyzeErr := a.analyzeClause(ctx, c, hints, kbHits)
			if analyzeErr != nil {
				degraded++
				a.writeEvent(ctx, job.TaskID, string(models.StatusLLMRisk), "WARN",
					fmt.Sprintf("risk analysis degraded for clause %s: %v", c.ClauseID, analyzeErr), "")
				if err := a.insertDegradedRisk(ctx, job.TaskID, c.ClauseID); err != nil {
					return nil, err
				}
				riskCount++
				continue
			}

			n, err := a.persistRisks(ctx, job.TaskID, c.ClauseID, analysis, kbHits)
			if err != nil {
				return nil, err
			}
			riskCount += n
		}
		return map[string]any{"risk_count": riskCount, "degraded_clauses": degraded}, nil
	}), nil
}

// analyzeClause is the attempt-then-repair loop around one model call.
func (a *Agents) analyzeClause(ctx context.Context, clause models.Clause, hints []models.RuleHit, kbHits []models.KBHit) (llm.RiskAnalysis, error) {
	messages := llm.BuildRiskAnalysisPrompt(clause, hints, kbHits)
	raw, err := a.gw.Chat(ctx, messages, riskChatOptions)
	if err != nil {
		return llm.RiskAnalysis{}, fmt.Errorf("chat call: %w", err)
	}
	analysis, parseErr := llm.ParseRiskAnalysis(raw)
	if parseErr == nil {
		return analysis, nil
	}

	repaired := llm.BuildRepairPrompt(messages, raw, parseErr)
	raw, err = a.gw.Chat(ctx, repaired, riskChatOptions)
	if err != nil {
		return llm.RiskAnalysis{}, fmt.Errorf("repair chat call: %w", err)
	}
	analysis, parseErr = llm.ParseRiskAnalysis(raw)
	if parseErr != nil {
		return llm.RiskAnalysis{}, fmt.Errorf("repair attempt still invalid: %w", parseErr)
	}
	return analysis, nil
}

// insertDegradedRisk records the placeholder risk a human must review when
// the model could not produce valid output for a clause.
func (a *Agents) insertDegradedRisk(ctx context.Context, taskID, clauseID string) error {
	_, err := a.risks.InsertRisk(ctx, models.Risk{
		TaskID:     taskID,
		ClauseID:   clauseID,
		RiskLevel:  models.RiskInfo,
		RiskType:   riskTypeLLMError,
		Confidence: 0,
		Summary:    "risk analysis unavailable for this clause, manual review required",
		Status:     riskStatusNeedsReview,
	})
	return err
}

func (a *Agents) persistRisks(ctx context.Context, taskID, clauseID string, analysis llm.RiskAnalysis, kbHits []models.KBHit) (int, error) {
	scoreByChunk := make(map[string]float64, len(kbHits))
	for _, h := range kbHits {
		scoreByChunk[h.ChunkID] = h.Score
	}

	count := 0
	for _, item := range analysis.Risks {
		riskID, err := a.risks.InsertRisk(ctx, models.Risk{
			TaskID:     taskID,
			ClauseID:   clauseID,
			RiskLevel:  models.RiskLevel(item.RiskLevel),
			RiskType:   item.RiskType,
			Confidence: item.Confidence,
			Summary:    item.Summary,
			Suggestion: item.Suggestion,
			Status:     riskStatusOpen,
		})
		if err != nil {
			return count, err
		}
		for _, ev := range item.KBEvidence {
			err := a.risks.InsertCitation(ctx, models.KBCitation{
				RiskID:     riskID,
				ChunkID:    ev.ChunkID,
				Score:      scoreByChunk[ev.ChunkID],
				QuoteText:  ev.QuoteText,
				DocVersion: ev.DocVersion,
			})
			if err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}
