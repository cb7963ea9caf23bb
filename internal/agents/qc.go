package agents

import (
	"context"
	"errors"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/storage"
)

const (
	qcReasonChunkMissing    = "chunk_missing"
	qcReasonVersionMismatch = "version_mismatch"
	qcReasonNoSnapshot      = "collection_not_in_snapshot"
)

// CitationCheck is the evidence gathered for one citation before judging it.
type CitationCheck struct {
	ChunkFound      bool
	DocVersion      int
	SnapshotVersion int
	SnapshotFound   bool
}

// CitationQCFlag decides whether a citation is a hallucination suspect. A
// citation is legitimate only when the cited chunk exists and its document's
// version equals the version frozen in the task's snapshot.
func CitationQCFlag(c CitationCheck) (string, bool) {
	if !c.ChunkFound {
		return qcReasonChunkMissing, true
	}
	if !c.SnapshotFound {
		return qcReasonNoSnapshot, true
	}
	if c.DocVersion != c.SnapshotVersion {
		return qcReasonVersionMismatch, true
	}
	return "", false
}

// QCActivity cross-checks every citation against the KB and the task's frozen
// snapshot, and downgrades unevidenced HIGH risks. Flag writes merge into
// qc_flags_json, so a re-run converges to the same state.
func (a *Agents) QCActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusQCing), func(ctx context.Context) (map[string]any, error) {
		risks, err := a.risks.ListRisks(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}

		suspects := 0
		downgrades := 0
		for _, risk := range risks {
			citations, err := a.risks.ListCitations(ctx, risk.ID)
			if err != nil {
				return nil, err
			}

			if risk.RiskLevel == models.RiskHigh && len(citations) == 0 {
				err := a.risks.DowngradeRiskLevel(ctx, risk.ID, models.RiskMedium,
					map[string]string{"downgraded": "no_evidence"})
				if err != nil {
					return nil, err
				}
				downgrades++
				a.writeEvent(ctx, job.TaskID, string(models.StatusQCing), "WARN",
					fmt.Sprintf("risk %s downgraded HIGH->MEDIUM: no citations", risk.ID), "")
			}

			for _, citation := range citations {
				check, err := a.checkCitation(ctx, job.TaskID, citation)
				if err != nil {
					return nil, err
				}
				reason, suspect := CitationQCFlag(check)
				if !suspect {
					continue
				}
				err = a.risks.SetQCFlags(ctx, risk.ID, map[string]string{
					"hallucination_suspect": "true",
					"hallucination_reason":  reason,
				})
				if err != nil {
					return nil, err
				}
				suspects++
				a.writeEvent(ctx, job.TaskID, string(models.StatusQCing), "WARN",
					fmt.Sprintf("citation %s on risk %s flagged: %s", citation.ID, risk.ID, reason), "")
			}
		}
		return map[string]any{"risk_count": len(risks), "hallucination_suspects": suspects, "downgrades": downgrades}, nil
	}), nil
}

func (a *Agents) checkCitation(ctx context.Context, taskID string, citation models.KBCitation) (CitationCheck, error) {
	info, err := a.kb.ResolveChunkVersion(ctx, citation.ChunkID)
	if err != nil {
		if errors.Is(err, storage.ErrChunkNotFound) {
			return CitationCheck{ChunkFound: false}, nil
		}
		return CitationCheck{}, err
	}
	snapVersion, ok, err := a.tasks.SnapshotVersion(ctx, taskID, info.CollectionID)
	if err != nil {
		return CitationCheck{}, err
	}
	return CitationCheck{
		ChunkFound:      true,
		DocVersion:      info.DocVersion,
		SnapshotVersion: snapVersion,
		SnapshotFound:   ok,
	}, nil
}
