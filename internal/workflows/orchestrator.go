package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"precheck/internal/agents"
	"precheck/internal/models"
)

const QueryGetProgress = "GetProgress"

const stageReporting = "REPORTING"

// stageStep is one entry of the fixed pipeline. Status is what the task row
// shows while the step runs; Label is the stage name on events and envelopes.
type stageStep struct {
	Status   models.TaskStatus
	Label    string
	Queue    string
	Activity string
}

var pipelineStages = []stageStep{
	{models.StatusParsing, string(models.StatusParsing), QueueParse, "ParseActivity"},
	{models.StatusStructuring, string(models.StatusStructuring), QueueSplit, "SplitActivity"},
	{models.StatusRuleScoring, string(models.StatusRuleScoring), QueueRules, "RulesActivity"},
	{models.StatusKBRetrieval, string(models.StatusKBRetrieval), QueueKBRetrieval, "KBRetrievalActivity"},
	{models.StatusLLMRisk, string(models.StatusLLMRisk), QueueLLMRisk, "LLMRiskActivity"},
	{models.StatusEvidencing, string(models.StatusEvidencing), QueueEvidence, "EvidenceActivity"},
	{models.StatusQCing, string(models.StatusQCing), QueueQC, "QCActivity"},
}

// reportStep runs after the task is DONE; it is not part of the stage machine
// and its failure never changes the terminal status.
var reportStep = stageStep{models.StatusDone, stageReporting, QueueReport, "ReportActivity"}

// TaskPipelineWorkflow drives one precheck task through the fixed stage
// machine. Stage activities own their retry decision through the result
// envelope: the workflow grants at most one retry per stage and Temporal's
// own activity retry stays off. The workflow never returns an error for a
// domain failure; FAILED and CANCELLED are recorded terminal states.
func TaskPipelineWorkflow(ctx workflow.Context, input PipelineInput) (PipelineProgress, error) {
	logger := workflow.GetLogger(ctx)
	progress := PipelineProgress{
		TaskID:       input.TaskID,
		Status:       models.StatusQueued,
		CurrentStage: string(models.StatusQueued),
		Retried:      map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (PipelineProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	total := len(pipelineStages)

	for i, stage := range pipelineStages {
		cancelled, err := cancelRequested(ctx, input)
		if err != nil {
			return finishOrchestratorError(ctx, input, &progress, stage.Label, err)
		}
		if cancelled {
			return finishCancelled(ctx, input, &progress, stage.Label)
		}

		pct := i * 100 / total
		progress.Status = stage.Status
		progress.Progress = pct
		progress.CurrentStage = stage.Label
		if err := updateTask(ctx, input, agents.StatusUpdateInput{
			TaskID:       input.TaskID,
			Status:       &stage.Status,
			Progress:     &pct,
			CurrentStage: &stage.Label,
		}); err != nil {
			return finishOrchestratorError(ctx, input, &progress, stage.Label, err)
		}

		result := runStage(ctx, input, stage, stageJob(input, stage, 1))
		if result.Error != nil && result.Error.Retryable {
			progress.Retried[stage.Label]++
			writeEvent(ctx, input, agents.EventInput{
				TaskID:  input.TaskID,
				Stage:   stage.Label,
				Level:   "WARN",
				Message: fmt.Sprintf("stage retrying after failure: %s", result.Error.Message),
			})
			result = runStage(ctx, input, stage, stageJob(input, stage, 2))
		}

		if result.Error != nil {
			if result.Error.Code == agents.ErrCodeCancelled {
				return finishCancelled(ctx, input, &progress, stage.Label)
			}
			logger.Error("stage failed terminally", "task_id", input.TaskID, "stage", stage.Label, "error", result.Error.Message)
			return finishFailed(ctx, input, &progress, stage.Label, result.Error.Message)
		}
	}

	done := models.StatusDone
	full := 100
	stage := string(models.StatusDone)
	progress.Status = done
	progress.Progress = full
	progress.CurrentStage = stage
	if err := updateTask(ctx, input, agents.StatusUpdateInput{
		TaskID:       input.TaskID,
		Status:       &done,
		Progress:     &full,
		CurrentStage: &stage,
	}); err != nil {
		return finishOrchestratorError(ctx, input, &progress, stage, err)
	}
	writeEvent(ctx, input, agents.EventInput{TaskID: input.TaskID, Stage: stage, Level: "INFO", Message: "task completed"})

	runReport(ctx, input, &progress)
	return progress, nil
}

// runReport generates the task report after the terminal DONE update. It gets
// the same single retry as a stage, but a report failure only leaves a WARN
// event; the task stays DONE.
func runReport(ctx workflow.Context, input PipelineInput, progress *PipelineProgress) {
	result := runStage(ctx, input, reportStep, stageJob(input, reportStep, 1))
	if result.Error != nil && result.Error.Retryable {
		progress.Retried[reportStep.Label]++
		result = runStage(ctx, input, reportStep, stageJob(input, reportStep, 2))
	}
	if result.Error != nil {
		writeEvent(ctx, input, agents.EventInput{
			TaskID:  input.TaskID,
			Stage:   reportStep.Label,
			Level:   "WARN",
			Message: "report generation failed: " + result.Error.Message,
		})
	}
}

// stageJob builds the job envelope for one stage attempt. Trace ids are
// derived deterministically so each dispatch is distinguishable in events and
// logs while staying stable across workflow replays.
func stageJob(input PipelineInput, stage stageStep, attempt int) agents.Job {
	return agents.Job{
		TaskID:  input.TaskID,
		TraceID: fmt.Sprintf("%s-%s-%d", input.TraceID, stage.Queue, attempt),
	}
}

// runStage executes one stage activity and folds scheduler-level errors
// (timeouts, dropped workers) into a retryable envelope error.
func runStage(ctx workflow.Context, input PipelineInput, stage stageStep, job agents.Job) agents.Result {
	opts := workflow.ActivityOptions{
		TaskQueue:           TaskQueue(input.QueuePrefix, stage.Queue),
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	stageCtx := workflow.WithActivityOptions(ctx, opts)

	var result agents.Result
	if err := workflow.ExecuteActivity(stageCtx, stage.Activity, job).Get(stageCtx, &result); err != nil {
		return agents.Result{
			TaskID:  job.TaskID,
			TraceID: job.TraceID,
			Stage:   stage.Label,
			Error:   &agents.AgentError{Code: agents.ErrCodeAgent, Message: err.Error(), Retryable: true},
		}
	}
	return result
}

func cancelRequested(ctx workflow.Context, input PipelineInput) (bool, error) {
	var task models.Task
	if err := workflow.ExecuteActivity(controlCtx(ctx, input), "GetTaskActivity", input.TaskID).Get(ctx, &task); err != nil {
		return false, fmt.Errorf("read task state: %w", err)
	}
	return task.CancelRequested, nil
}

func updateTask(ctx workflow.Context, input PipelineInput, in agents.StatusUpdateInput) error {
	return workflow.ExecuteActivity(controlCtx(ctx, input), "UpdateTaskStatusActivity", in).Get(ctx, nil)
}

// writeEvent is best effort from the workflow side as well.
func writeEvent(ctx workflow.Context, input PipelineInput, in agents.EventInput) {
	if err := workflow.ExecuteActivity(controlCtx(ctx, input), "WriteEventActivity", in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("write event failed", "task_id", in.TaskID, "error", err)
	}
}

// controlCtx targets the orchestrator queue for bookkeeping activities, with
// Temporal retries on since these are pure repo calls.
func controlCtx(ctx workflow.Context, input PipelineInput) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           TaskQueue(input.QueuePrefix, QueueOrchestrator),
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
}

// finishCancelled records the terminal CANCELLED state. The event carries the
// CANCELLED label, never the label of a stage that did not run.
func finishCancelled(ctx workflow.Context, input PipelineInput, progress *PipelineProgress, stage string) (PipelineProgress, error) {
	cancelled := models.StatusCancelled
	label := string(models.StatusCancelled)
	progress.Status = cancelled
	progress.CurrentStage = label
	_ = updateTask(ctx, input, agents.StatusUpdateInput{TaskID: input.TaskID, Status: &cancelled, CurrentStage: &label})
	writeEvent(ctx, input, agents.EventInput{
		TaskID:  input.TaskID,
		Stage:   label,
		Level:   "INFO",
		Message: "task cancelled before stage " + stage,
	})
	return *progress, nil
}

func finishFailed(ctx workflow.Context, input PipelineInput, progress *PipelineProgress, stage, message string) (PipelineProgress, error) {
	failed := models.StatusFailed
	label := string(models.StatusFailed)
	progress.Status = failed
	progress.CurrentStage = label
	progress.Error = message
	_ = updateTask(ctx, input, agents.StatusUpdateInput{
		TaskID:       input.TaskID,
		Status:       &failed,
		CurrentStage: &label,
		ErrorMessage: &message,
	})
	writeEvent(ctx, input, agents.EventInput{
		TaskID:  input.TaskID,
		Stage:   stage,
		Level:   "ERROR",
		Message: "task failed: " + message,
	})
	return *progress, nil
}

// finishOrchestratorError covers failures of the state machine itself, not a
// stage agent. The task is marked FAILED and the workflow surfaces the error.
func finishOrchestratorError(ctx workflow.Context, input PipelineInput, progress *PipelineProgress, stage string, cause error) (PipelineProgress, error) {
	failed := models.StatusFailed
	label := string(models.StatusFailed)
	message := fmt.Sprintf("%s: %v", agents.ErrCodeOrchestrator, cause)
	progress.Status = failed
	progress.Error = message
	_ = updateTask(ctx, input, agents.StatusUpdateInput{
		TaskID:       input.TaskID,
		Status:       &failed,
		CurrentStage: &label,
		ErrorMessage: &message,
	})
	writeEvent(ctx, input, agents.EventInput{
		TaskID:  input.TaskID,
		Stage:   stage,
		Level:   "ERROR",
		Message: message,
	})
	return *progress, temporal.NewNonRetryableApplicationError(message, agents.ErrCodeOrchestrator, cause)
}
