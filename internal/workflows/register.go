package workflows

import (
	"go.temporal.io/sdk/worker"

	"precheck/internal/agents"
)

// RegisterWorkflows registers the workflow definitions on a worker.
func RegisterWorkflows(w worker.Worker) {
	w.RegisterWorkflow(TaskPipelineWorkflow)
	w.RegisterWorkflow(KBIngestWorkflow)
}

// RegisterActivities registers every activity under its method name, matching
// the string names the workflows dispatch on.
func RegisterActivities(w worker.Worker, a *agents.Agents) {
	w.RegisterActivity(a.ParseActivity)
	w.RegisterActivity(a.SplitActivity)
	w.RegisterActivity(a.RulesActivity)
	w.RegisterActivity(a.KBRetrievalActivity)
	w.RegisterActivity(a.LLMRiskActivity)
	w.RegisterActivity(a.EvidenceActivity)
	w.RegisterActivity(a.QCActivity)
	w.RegisterActivity(a.ReportActivity)
	w.RegisterActivity(a.GetTaskActivity)
	w.RegisterActivity(a.UpdateTaskStatusActivity)
	w.RegisterActivity(a.WriteEventActivity)
	w.RegisterActivity(a.PrepareKBDocumentActivity)
	w.RegisterActivity(a.EmbedKBChunksActivity)
}
