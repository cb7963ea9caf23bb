package agents

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/parser"
	"precheck/internal/util"
)

// ParseActivity downloads the contract file, extracts its plain text and
// stores the result for the structuring stage.
func (a *Agents) ParseActivity(ctx context.Context, job Job) (Result, error) {
	return a.run(ctx, job, string(models.StatusParsing), func(ctx context.Context) (map[string]any, error) {
		task, err := a.tasks.GetTask(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		version, err := a.contracts.GetVersion(ctx, task.ContractVersionID)
		if err != nil {
			return nil, fmt.Errorf("load contract version: %w", err)
		}
		data, err := a.store.Download(ctx, version.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("download contract: %w", err)
		}
		if sum := util.SHA256Hex(data); version.SHA256 != "" && sum != version.SHA256 {
			return nil, fmt.Errorf("contract content hash mismatch: stored %s, got %s", version.SHA256, sum)
		}
		parsed, err := parser.Parse(data, version.Mime)
		if err != nil {
			return nil, fmt.Errorf("parse contract: %w", err)
		}
		if err := a.store.Upload(ctx, parsedTextKey(job.TaskID), []byte(parsed.Text), "text/plain"); err != nil {
			return nil, fmt.Errorf("store parsed text: %w", err)
		}
		return map[string]any{"chars": len(parsed.Text), "pages": parsed.Pages}, nil
	}), nil
}
