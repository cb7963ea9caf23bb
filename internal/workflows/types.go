package workflows

import "precheck/internal/models"

type PipelineInput struct {
	TaskID      string `json:"task_id"`
	TraceID     string `json:"trace_id"`
	QueuePrefix string `json:"queue_prefix"`
}

// PipelineProgress is the query-visible view of a running task.
type PipelineProgress struct {
	TaskID       string            `json:"task_id"`
	Status       models.TaskStatus `json:"status"`
	Progress     int               `json:"progress"`
	CurrentStage string            `json:"current_stage"`
	Retried      map[string]int    `json:"retried"`
	Error        string            `json:"error,omitempty"`
}

type KBIngestInput struct {
	CollectionID string `json:"collection_id"`
	Title        string `json:"title"`
	DocType      string `json:"doc_type"`
	ObjectKey    string `json:"object_key"`
	Mime         string `json:"mime"`
	QueuePrefix  string `json:"queue_prefix"`
}

type KBIngestResult struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Chunks     int    `json:"chunks"`
	Embedded   int    `json:"embedded"`
}
