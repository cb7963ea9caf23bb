package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"precheck/internal/agents"
)

// KBIngestWorkflow ingests one document into a KB collection: download and
// parse, chunk at a freshly bumped collection version, then embed and index.
// Tasks created before the ingest keep retrieving against their frozen
// version, so a running precheck never sees the new chunks.
func KBIngestWorkflow(ctx workflow.Context, input KBIngestInput) (KBIngestResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           TaskQueue(input.QueuePrefix, QueueKBIngest),
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var prepared agents.PrepareKBDocumentResult
	err := workflow.ExecuteActivity(ctx, "PrepareKBDocumentActivity", agents.KBIngestJob{
		CollectionID: input.CollectionID,
		Title:        input.Title,
		DocType:      input.DocType,
		ObjectKey:    input.ObjectKey,
		Mime:         input.Mime,
	}).Get(ctx, &prepared)
	if err != nil {
		return KBIngestResult{}, err
	}

	var embedded int
	if err := workflow.ExecuteActivity(ctx, "EmbedKBChunksActivity", prepared.ChunkIDs).Get(ctx, &embedded); err != nil {
		return KBIngestResult{}, err
	}

	return KBIngestResult{
		DocumentID: prepared.DocumentID,
		Version:    prepared.Version,
		Chunks:     len(prepared.ChunkIDs),
		Embedded:   embedded,
	}, nil
}
