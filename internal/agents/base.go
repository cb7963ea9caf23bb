package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"precheck/internal/config"
	"precheck/internal/gateway"
	"precheck/internal/objstore"
	"precheck/internal/retrieval"
	"precheck/internal/storage"
)

// Agents bundles the stage activity implementations with their shared
// collaborators. One instance is registered on every stage worker.
type Agents struct {
	cfg       config.Config
	tasks     *storage.TaskRepo
	events    *storage.EventRepo
	clauses   *storage.ClauseRepo
	risks     *storage.RiskRepo
	kb        *storage.KBRepo
	hits      *storage.HitsRepo
	contracts *storage.ContractRepo
	reports   *storage.ReportRepo
	gw        *gateway.Gateway
	retrieval *retrieval.Service
	store     objstore.Store
	logger    *slog.Logger
}

type Deps struct {
	Config    config.Config
	Tasks     *storage.TaskRepo
	Events    *storage.EventRepo
	Clauses   *storage.ClauseRepo
	Risks     *storage.RiskRepo
	KB        *storage.KBRepo
	Hits      *storage.HitsRepo
	Contracts *storage.ContractRepo
	Reports   *storage.ReportRepo
	Gateway   *gateway.Gateway
	Retrieval *retrieval.Service
	Store     objstore.Store
	Logger    *slog.Logger
}

func New(d Deps) *Agents {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agents{
		cfg:       d.Config,
		tasks:     d.Tasks,
		events:    d.Events,
		clauses:   d.Clauses,
		risks:     d.Risks,
		kb:        d.KB,
		hits:      d.Hits,
		contracts: d.Contracts,
		reports:   d.Reports,
		gw:        d.Gateway,
		retrieval: d.Retrieval,
		store:     d.Store,
		logger:    logger,
	}
}

// run is the shared stage template: cancel check, started event, execute,
// completed or failed event, envelope. Domain failures never surface as Go
// errors to the activity scheduler.
func (a *Agents) run(ctx context.Context, job Job, stage string, fn func(ctx context.Context) (map[string]any, error)) Result {
	res := Result{TaskID: job.TaskID, TraceID: job.TraceID, Stage: stage}

	task, err := a.tasks.GetTask(ctx, job.TaskID)
	if err != nil {
		res.Error = &AgentError{Code: ErrCodeAgent, Message: fmt.Sprintf("load task: %v", err), Retryable: true}
		return res
	}
	if task.CancelRequested {
		res.Error = &AgentError{Code: ErrCodeCancelled, Message: "cancel requested", Retryable: false}
		return res
	}

	a.writeEvent(ctx, job.TaskID, stage, "INFO", "stage started", "")
	start := time.Now()

	output, err := fn(ctx)
	elapsed := time.Since(start).Milliseconds()
	res.Metrics = Metrics{ElapsedMs: elapsed}

	if err != nil {
		a.logger.Error("stage failed", "task_id", job.TaskID, "trace_id", job.TraceID, "stage", stage, "error", err)
		a.writeEvent(ctx, job.TaskID, stage, "ERROR", fmt.Sprintf("stage failed: %v", err),
			fmt.Sprintf(`{"elapsed_ms": %d}`, elapsed))
		res.Error = &AgentError{Code: ErrCodeAgent, Message: err.Error(), Retryable: true}
		return res
	}

	a.writeEvent(ctx, job.TaskID, stage, "INFO", "stage completed", fmt.Sprintf(`{"elapsed_ms": %d}`, elapsed))
	res.OK = true
	res.Output = output
	return res
}

// writeEvent is best effort; a trail write must never fail a stage.
func (a *Agents) writeEvent(ctx context.Context, taskID, stage, level, message, metaJSON string) {
	if err := a.events.WriteEvent(ctx, taskID, stage, level, message, metaJSON); err != nil {
		a.logger.Warn("write task event failed", "task_id", taskID, "stage", stage, "error", err)
	}
}

func parsedTextKey(taskID string) string {
	return fmt.Sprintf("tasks/%s/parsed.txt", taskID)
}

func reportKey(taskID, format string) string {
	return fmt.Sprintf("reports/%s/report.%s", taskID, format)
}
