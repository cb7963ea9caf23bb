package agents

// Error codes carried in the result envelope. The orchestrator keys its retry
// and terminal-state decisions off these, never off Go error values.
const (
	ErrCodeCancelled    = "CANCELLED"
	ErrCodeAgent        = "AGENT_ERROR"
	ErrCodeOrchestrator = "ORCHESTRATOR_ERROR"
)

// Job is the input every stage activity receives.
type Job struct {
	TaskID  string `json:"task_id"`
	TraceID string `json:"trace_id"`
}

type Metrics struct {
	ElapsedMs int64 `json:"elapsed_ms"`
}

type AgentError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Result is the uniform envelope stage activities return. Activities never
// return a Go error for domain failures; the envelope carries them so the
// workflow, not the activity scheduler, owns the retry policy.
type Result struct {
	OK      bool           `json:"ok"`
	TaskID  string         `json:"task_id"`
	TraceID string         `json:"trace_id"`
	Stage   string         `json:"stage"`
	Metrics Metrics        `json:"metrics"`
	Output  map[string]any `json:"output,omitempty"`
	Error   *AgentError    `json:"error,omitempty"`
}
