package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"precheck/internal/models"
	"precheck/internal/util"
)

var ErrChunkNotFound = errors.New("kb chunk not found")

type KBRepo struct {
	db *DB
}

func NewKBRepo(db *DB) *KBRepo {
	return &KBRepo{db: db}
}

func (r *KBRepo) CreateCollection(ctx context.Context, name, scope string) (string, error) {
	id := util.NewID("kbcol")
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_collections (id, name, scope, version, is_enabled)
VALUES ($1, $2, $3, 1, TRUE)`, id, name, scope)
	if err != nil {
		return "", fmt.Errorf("create kb collection: %w", err)
	}
	return id, nil
}

func (r *KBRepo) ListCollections(ctx context.Context) ([]models.KBCollection, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, name, scope, version, is_enabled, created_at
FROM kb_collections
WHERE is_enabled=TRUE
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list kb collections: %w", err)
	}
	defer rows.Close()

	out := make([]models.KBCollection, 0, 8)
	for rows.Next() {
		var c models.KBCollection
		if err := rows.Scan(&c.ID, &c.Name, &c.Scope, &c.Version, &c.IsEnabled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kb collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *KBRepo) GetCollection(ctx context.Context, collectionID string) (models.KBCollection, error) {
	var c models.KBCollection
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, name, scope, version, is_enabled, created_at
FROM kb_collections
WHERE id=$1`, collectionID).
		Scan(&c.ID, &c.Name, &c.Scope, &c.Version, &c.IsEnabled, &c.CreatedAt)
	if err != nil {
		return models.KBCollection{}, fmt.Errorf("get kb collection: %w", err)
	}
	return c, nil
}

// InsertDocument records a document at the given version. Re-ingesting the
// same title bumps the collection and document versions via BumpVersions.
func (r *KBRepo) InsertDocument(ctx context.Context, d models.KBDocument) (string, error) {
	id := d.ID
	if id == "" {
		id = util.NewID("kbdoc")
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_documents (id, collection_id, title, doc_type, object_key, version, hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, d.CollectionID, d.Title, d.DocType, d.ObjectKey, d.Version, d.Hash)
	if err != nil {
		return "", fmt.Errorf("insert kb document: %w", err)
	}
	return id, nil
}

// BumpVersions increments the collection version and returns the new value.
// Callers ingest re-uploaded documents at this new version; tasks created
// earlier keep citing the version frozen in their snapshots.
func (r *KBRepo) BumpVersions(ctx context.Context, collectionID string) (int, error) {
	var version int
	err := r.db.Pool.QueryRow(ctx, `
UPDATE kb_collections SET version = version + 1 WHERE id=$1 RETURNING version`,
		collectionID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump collection version: %w", err)
	}
	return version, nil
}

func (r *KBRepo) InsertChunks(ctx context.Context, documentID string, texts []string) ([]string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		id := util.NewID("chunk")
		_, err := tx.Exec(ctx, `
INSERT INTO kb_chunks (id, document_id, chunk_no, text)
VALUES ($1, $2, $3, $4)`, id, documentID, i, util.SanitizeText(text))
		if err != nil {
			return nil, fmt.Errorf("insert kb chunk %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit kb chunks tx: %w", err)
	}
	return ids, nil
}

func (r *KBRepo) GetChunkTexts(ctx context.Context, chunkIDs []string) (map[string]string, error) {
	if len(chunkIDs) == 0 {
		return map[string]string{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT id, text FROM kb_chunks WHERE id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("get chunk texts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(chunkIDs))
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan chunk text: %w", err)
		}
		out[id] = text
	}
	return out, rows.Err()
}

func (r *KBRepo) UpsertEmbedding(ctx context.Context, chunkID, vectorLiteral string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_embeddings (chunk_id, embedding)
VALUES ($1, $2::vector)
ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		chunkID, vectorLiteral)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// ChunkVersionInfo resolves a cited chunk to its document's current version
// and owning collection. QC compares this against the task's frozen snapshot.
type ChunkVersionInfo struct {
	ChunkID      string
	DocumentID   string
	CollectionID string
	DocVersion   int
}

func (r *KBRepo) ResolveChunkVersion(ctx context.Context, chunkID string) (ChunkVersionInfo, error) {
	var info ChunkVersionInfo
	err := r.db.Pool.QueryRow(ctx, `
SELECT c.id, d.id, d.collection_id, d.version
FROM kb_chunks c
JOIN kb_documents d ON c.document_id = d.id
WHERE c.id=$1`, chunkID).
		Scan(&info.ChunkID, &info.DocumentID, &info.CollectionID, &info.DocVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChunkVersionInfo{}, ErrChunkNotFound
		}
		return ChunkVersionInfo{}, fmt.Errorf("resolve chunk version: %w", err)
	}
	return info, nil
}
