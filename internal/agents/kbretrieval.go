package agents

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/retrieval"
)

// KBRetrievalActivity retrieves KB evidence for every clause against the
// versions frozen in the task's snapshots. A per-clause retrieval failure is
// absorbed with a WARN event; only a task-level problem fails the stage.
func (a *Agents) KBRetrievalActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusKBRetrieval), func(ctx context.Context) (map[string]any, error) {
		task, err := a.tasks.GetTask(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		snapshots, err := a.tasks.ListSnapshots(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		if len(snapshots) == 0 {
			if task.KBMode == models.KBModeStrict {
				return nil, fmt.Errorf("strict kb mode with no kb snapshots")
			}
			a.writeEvent(ctx, job.TaskID, string(models.StatusKBRetrieval), "WARN",
				"no kb collections frozen for task, skipping retrieval", "")
			return map[string]any{"kb_hits": 0}, nil
		}
		collectionIDs := make([]string, 0, len(snapshots))
		for _, s := range snapshots {
			collectionIDs = append(collectionIDs, s.CollectionID)
		}

		clauses, err := a.clauses.ListClauses(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}

		opts := retrieval.Options{TopK: a.cfg.KBTopK, TopN: a.cfg.KBTopN, TaskID: job.TaskID}
		total := 0
		failed := 0
		for _, c := range clauses {
			hints, err := a.hits.ListRuleHits(ctx, job.TaskID, c.ClauseID)
			if err != nil {
				return nil, err
			}
			results, err := a.retrieval.RetrieveForClause(ctx, c, hints, collectionIDs, opts)
			if err != nil {
				failed++
				a.writeEvent(ctx, job.TaskID, string(models.StatusKBRetrieval), "WARN",
					fmt.Sprintf("retrieval failed for clause %s: %v", c.ClauseID, err), "")
				continue
			}
			for _, h := range results {
				h.TaskID = job.TaskID
				h.ClauseID = c.ClauseID
				if err := a.hits.InsertKBHit(ctx, h); err != nil {
					return nil, err
				}
				total++
			}
		}
		return map[string]any{"kb_hits": total, "failed_clauses": failed}, nil
	}), nil
}
