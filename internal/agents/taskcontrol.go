package agents

import (
	"context"

	"precheck/internal/models"
	"precheck/internal/storage"
)

// Task-control activities the orchestrator workflow uses for state machine
// bookkeeping. These are plain repo calls; a Go error here is infrastructure
// trouble and may be retried by the caller.

func (a *Agents) GetTaskActivity(ctx context.Context, taskID string) (models.Task, error) {
	return a.tasks.GetTask(ctx, taskID)
}

type StatusUpdateInput struct {
	TaskID       string             `json:"task_id"`
	Status       *models.TaskStatus `json:"status,omitempty"`
	Progress     *int               `json:"progress,omitempty"`
	CurrentStage *string            `json:"current_stage,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
}

func (a *Agents) UpdateTaskStatusActivity(ctx context.Context, in StatusUpdateInput) error {
	return a.tasks.UpdateTaskStatus(ctx, in.TaskID, storage.TaskStatusUpdate{
		Status:       in.Status,
		Progress:     in.Progress,
		CurrentStage: in.CurrentStage,
		ErrorMessage: in.ErrorMessage,
	})
}

type EventInput struct {
	TaskID   string `json:"task_id"`
	Stage    string `json:"stage"`
	Level    string `json:"level"`
	Message  string `json:"message"`
	MetaJSON string `json:"meta_json,omitempty"`
}

func (a *Agents) WriteEventActivity(ctx context.Context, in EventInput) error {
	return a.events.WriteEvent(ctx, in.TaskID, in.Stage, in.Level, in.Message, in.MetaJSON)
}
