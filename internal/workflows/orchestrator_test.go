package workflows

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"precheck/internal/agents"
	"precheck/internal/models"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

// pipelineHarness wires the orchestrator's bookkeeping activities with fakes
// and records the task row mutations the workflow performs.
type pipelineHarness struct {
	mu       sync.Mutex
	task     models.Task
	statuses []models.TaskStatus
	events   []agents.EventInput
}

func newHarness(env *testsuite.TestWorkflowEnvironment, task models.Task) *pipelineHarness {
	h := &pipelineHarness{task: task}
	registerActivityName(env, "GetTaskActivity", func(_ context.Context, _ string) (models.Task, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.task, nil
	})
	registerActivityName(env, "UpdateTaskStatusActivity", func(_ context.Context, in agents.StatusUpdateInput) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if in.Status != nil {
			h.task.Status = *in.Status
			h.statuses = append(h.statuses, *in.Status)
		}
		if in.Progress != nil {
			h.task.Progress = *in.Progress
		}
		if in.CurrentStage != nil {
			h.task.CurrentStage = *in.CurrentStage
		}
		if in.ErrorMessage != nil {
			h.task.ErrorMessage = *in.ErrorMessage
		}
		return nil
	})
	registerActivityName(env, "WriteEventActivity", func(_ context.Context, in agents.EventInput) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, in)
		return nil
	})
	return h
}

func okResult(stage string) agents.Result {
	return agents.Result{OK: true, TaskID: "task_1", Stage: stage}
}

func failResult(stage, code string, retryable bool) agents.Result {
	return agents.Result{
		TaskID: "task_1",
		Stage:  stage,
		Error:  &agents.AgentError{Code: code, Message: "boom", Retryable: retryable},
	}
}

func registerStage(env *testsuite.TestWorkflowEnvironment, name string) {
	registerActivityName(env, name, func(context.Context, agents.Job) (agents.Result, error) {
		return agents.Result{}, nil
	})
}

func registerAllStages(env *testsuite.TestWorkflowEnvironment) {
	for _, s := range pipelineStages {
		registerStage(env, s.Activity)
	}
	registerStage(env, reportStep.Activity)
}

var testInput = PipelineInput{TaskID: "task_1", TraceID: "trace_1", QueuePrefix: "precheck"}

func TestTaskPipelineWorkflowCompletes(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)
	for _, s := range pipelineStages {
		env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(okResult(s.Label), nil)
	}
	env.OnActivity(reportStep.Activity, mock.Anything, mock.Anything).Return(okResult(reportStep.Label), nil)

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusDone, out.Status)
	require.Equal(t, 100, out.Progress)
	require.Empty(t, out.Retried)

	require.Equal(t, models.StatusDone, h.task.Status)
	// Status moved through the stages in order, never backwards, and the
	// report step after DONE did not touch the task row.
	want := []models.TaskStatus{
		models.StatusParsing, models.StatusStructuring, models.StatusRuleScoring,
		models.StatusKBRetrieval, models.StatusLLMRisk, models.StatusEvidencing,
		models.StatusQCing, models.StatusDone,
	}
	require.Equal(t, want, h.statuses)
}

func TestTaskPipelineWorkflowStageTraceIDs(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	var mu sync.Mutex
	traces := map[string][]string{}
	for _, s := range pipelineStages {
		stage := s
		env.OnActivity(stage.Activity, mock.Anything, mock.Anything).Return(func(_ context.Context, job agents.Job) (agents.Result, error) {
			mu.Lock()
			traces[stage.Label] = append(traces[stage.Label], job.TraceID)
			mu.Unlock()
			return okResult(stage.Label), nil
		})
	}
	env.OnActivity(reportStep.Activity, mock.Anything, mock.Anything).Return(func(_ context.Context, job agents.Job) (agents.Result, error) {
		mu.Lock()
		traces[reportStep.Label] = append(traces[reportStep.Label], job.TraceID)
		mu.Unlock()
		return okResult(reportStep.Label), nil
	})

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// Every dispatch carries its own trace id derived from the task trace.
	seen := map[string]bool{}
	for label, ids := range traces {
		require.Len(t, ids, 1, "stage %s", label)
		require.NotEqual(t, testInput.TraceID, ids[0])
		require.True(t, strings.HasPrefix(ids[0], testInput.TraceID+"-"), "trace id %q", ids[0])
		require.False(t, seen[ids[0]], "trace id %q reused", ids[0])
		seen[ids[0]] = true
	}
	require.Len(t, seen, len(pipelineStages)+1)
}

func TestTaskPipelineWorkflowRetriesOnceThenSucceeds(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	attempts := 0
	for _, s := range pipelineStages {
		if s.Activity == "RulesActivity" {
			env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
				attempts++
				if attempts == 1 {
					return failResult(s.Label, agents.ErrCodeAgent, true), nil
				}
				return okResult(s.Label), nil
			})
			continue
		}
		env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(okResult(s.Label), nil)
	}

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusDone, out.Status)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, out.Retried["RULE_SCORING"])

	retryEvents := 0
	for _, e := range h.events {
		if e.Level == "WARN" && e.Stage == "RULE_SCORING" {
			retryEvents++
		}
	}
	require.Equal(t, 1, retryEvents)
}

func TestTaskPipelineWorkflowFailsAfterSecondAttempt(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	llmCalls := 0
	reportCalls := 0
	for _, s := range pipelineStages {
		if s.Activity == "LLMRiskActivity" {
			env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
				llmCalls++
				return failResult(s.Label, agents.ErrCodeAgent, true), nil
			})
			continue
		}
		env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(okResult(s.Label), nil)
	}
	env.OnActivity(reportStep.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
		reportCalls++
		return okResult(reportStep.Label), nil
	})

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out.Status)
	require.Equal(t, "boom", out.Error)
	require.Equal(t, 2, llmCalls)
	require.Equal(t, 0, reportCalls)
	require.Equal(t, models.StatusFailed, h.task.Status)
	require.Equal(t, "boom", h.task.ErrorMessage)
}

func TestTaskPipelineWorkflowCancelledEnvelopeIsTerminal(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	parseCalls := 0
	for _, s := range pipelineStages {
		if s.Activity == "ParseActivity" {
			env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
				parseCalls++
				return failResult(s.Label, agents.ErrCodeCancelled, false), nil
			})
			continue
		}
		env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(okResult(s.Label), nil)
	}

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusCancelled, out.Status)
	require.Equal(t, 1, parseCalls)
	require.Equal(t, models.StatusCancelled, h.task.Status)
}

func TestTaskPipelineWorkflowStopsWhenCancelRequested(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	stagesRun := 0
	for _, s := range pipelineStages {
		stage := s
		env.OnActivity(stage.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
			stagesRun++
			if stage.Activity == "SplitActivity" {
				// External cancel lands while the stage runs; the workflow
				// sees the flag at the next stage boundary.
				h.mu.Lock()
				h.task.CancelRequested = true
				h.mu.Unlock()
			}
			return okResult(stage.Label), nil
		})
	}

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusCancelled, out.Status)
	require.Equal(t, 2, stagesRun)
	require.Equal(t, models.StatusCancelled, h.task.Status)

	// The skipped stage never appears as an event tag; the cancel event
	// carries the terminal label.
	cancelEvents := 0
	for _, e := range h.events {
		require.NotEqual(t, "RULE_SCORING", e.Stage)
		if e.Stage == string(models.StatusCancelled) {
			cancelEvents++
		}
	}
	require.Equal(t, 1, cancelEvents)
}

func TestTaskPipelineWorkflowReportFailureKeepsTaskDone(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(TaskPipelineWorkflow)
	h := newHarness(env, models.Task{ID: "task_1", Status: models.StatusQueued})
	registerAllStages(env)

	for _, s := range pipelineStages {
		env.OnActivity(s.Activity, mock.Anything, mock.Anything).Return(okResult(s.Label), nil)
	}
	reportCalls := 0
	env.OnActivity(reportStep.Activity, mock.Anything, mock.Anything).Return(func(context.Context, agents.Job) (agents.Result, error) {
		reportCalls++
		return failResult(reportStep.Label, agents.ErrCodeAgent, true), nil
	})

	env.ExecuteWorkflow(TaskPipelineWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PipelineProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusDone, out.Status)
	require.Equal(t, 100, out.Progress)
	require.Equal(t, 2, reportCalls)
	require.Equal(t, 1, out.Retried["REPORTING"])
	require.Equal(t, models.StatusDone, h.task.Status)

	warns := 0
	for _, e := range h.events {
		if e.Stage == "REPORTING" && e.Level == "WARN" {
			warns++
		}
	}
	require.Equal(t, 1, warns)
}

func TestKBIngestWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KBIngestWorkflow)
	registerActivityName(env, "PrepareKBDocumentActivity", func(context.Context, agents.KBIngestJob) (agents.PrepareKBDocumentResult, error) {
		return agents.PrepareKBDocumentResult{}, nil
	})
	registerActivityName(env, "EmbedKBChunksActivity", func(context.Context, []string) (int, error) {
		return 0, nil
	})

	env.OnActivity("PrepareKBDocumentActivity", mock.Anything, mock.Anything).
		Return(agents.PrepareKBDocumentResult{DocumentID: "kbdoc_1", Version: 2, ChunkIDs: []string{"chk_1", "chk_2"}}, nil)
	env.OnActivity("EmbedKBChunksActivity", mock.Anything, []string{"chk_1", "chk_2"}).Return(2, nil)

	env.ExecuteWorkflow(KBIngestWorkflow, KBIngestInput{CollectionID: "kbcol_1", Title: "Playbook", ObjectKey: "kb/playbook.pdf", Mime: "application/pdf", QueuePrefix: "precheck"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out KBIngestResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 2, out.Version)
	require.Equal(t, 2, out.Chunks)
	require.Equal(t, 2, out.Embedded)
}
