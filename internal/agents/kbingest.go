package agents

import (
	"context"
	"fmt"

	"precheck/internal/models"
	"precheck/internal/parser"
	"precheck/internal/util"
	"precheck/internal/vector"
)

// KBIngestJob describes one document upload into a KB collection.
type KBIngestJob struct {
	CollectionID string `json:"collection_id"`
	Title        string `json:"title"`
	DocType      string `json:"doc_type"`
	ObjectKey    string `json:"object_key"`
	Mime         string `json:"mime"`
}

// PrepareKBDocumentResult carries the chunk ids to the embedding activity.
type PrepareKBDocumentResult struct {
	DocumentID string   `json:"document_id"`
	Version    int      `json:"version"`
	ChunkIDs   []string `json:"chunk_ids"`
}

// PrepareKBDocumentActivity downloads and parses the document, bumps the
// collection version, and stores the document row plus its chunks at the new
// version. Tasks created before this call keep citing their frozen version.
func (a *Agents) PrepareKBDocumentActivity(ctx context.Context, job KBIngestJob) (PrepareKBDocumentResult, error) {
	data, err := a.store.Download(ctx, job.ObjectKey)
	if err != nil {
		return PrepareKBDocumentResult{}, fmt.Errorf("download kb document: %w", err)
	}
	parsed, err := parser.Parse(data, job.Mime)
	if err != nil {
		return PrepareKBDocumentResult{}, fmt.Errorf("parse kb document: %w", err)
	}

	version, err := a.kb.BumpVersions(ctx, job.CollectionID)
	if err != nil {
		return PrepareKBDocumentResult{}, err
	}
	docID, err := a.kb.InsertDocument(ctx, models.KBDocument{
		CollectionID: job.CollectionID,
		Title:        job.Title,
		DocType:      job.DocType,
		ObjectKey:    job.ObjectKey,
		Version:      version,
		Hash:         util.SHA256Hex(data),
	})
	if err != nil {
		return PrepareKBDocumentResult{}, err
	}

	chunks := ChunkText(parsed.Text, a.cfg.KBChunkSize, a.cfg.KBChunkOverlap)
	if len(chunks) == 0 {
		return PrepareKBDocumentResult{}, fmt.Errorf("document produced no chunks")
	}
	chunkIDs, err := a.kb.InsertChunks(ctx, docID, chunks)
	if err != nil {
		return PrepareKBDocumentResult{}, err
	}

	a.logger.Info("kb document prepared", "collection_id", job.CollectionID,
		"document_id", docID, "version", version, "chunks", len(chunkIDs))
	return PrepareKBDocumentResult{DocumentID: docID, Version: version, ChunkIDs: chunkIDs}, nil
}

const embedBatchSize = 16

// EmbedKBChunksActivity embeds chunk texts in batches and upserts the vectors.
// Re-running after a partial failure overwrites already written rows.
func (a *Agents) EmbedKBChunksActivity(ctx context.Context, chunkIDs []string) (int, error) {
	texts, err := a.kb.GetChunkTexts(ctx, chunkIDs)
	if err != nil {
		return 0, err
	}

	embedded := 0
	for batchStart := 0; batchStart < len(chunkIDs); batchStart += embedBatchSize {
		batchEnd := batchStart + embedBatchSize
		if batchEnd > len(chunkIDs) {
			batchEnd = len(chunkIDs)
		}
		batch := chunkIDs[batchStart:batchEnd]

		batchTexts := make([]string, 0, len(batch))
		for _, id := range batch {
			text, ok := texts[id]
			if !ok {
				return embedded, fmt.Errorf("chunk %s has no stored text", id)
			}
			batchTexts = append(batchTexts, text)
		}

		vectors, err := a.gw.Embed(ctx, batchTexts)
		if err != nil {
			return embedded, fmt.Errorf("embed chunk batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return embedded, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i, id := range batch {
			if err := a.kb.UpsertEmbedding(ctx, id, vector.ToLiteral(vectors[i])); err != nil {
				return embedded, err
			}
			embedded++
		}
	}
	return embedded, nil
}
