package objstore

import "context"

// Store is the object storage collaborator holding contract uploads, KB
// documents and generated reports.
type Store interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}
