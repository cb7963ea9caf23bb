package workflows

import "fmt"

// Queue short names. Each stage gets its own Temporal task queue so worker
// concurrency is tuned per stage.
const (
	QueueOrchestrator = "orchestrator"
	QueueParse        = "parse"
	QueueSplit        = "split"
	QueueRules        = "rules"
	QueueKBRetrieval  = "kbretrieval"
	QueueLLMRisk      = "llmrisk"
	QueueEvidence     = "evidence"
	QueueQC           = "qc"
	QueueReport       = "report"
	QueueKBIngest     = "kbingest"
)

func TaskQueue(prefix, name string) string {
	return fmt.Sprintf("%s.agent.%s", prefix, name)
}
