package port

import (
	"context"

	"ragchain/internal/domain"
)

// Linker maps passage ids to stored JSON documents, independent of any index.
// Implementations are safe for concurrent use.
type Linker interface {
	// PutJSON upserts each id/document pair. len(ids) must equal len(docs).
	// There is no cross-key atomicity; a partial write is reported as an error.
	PutJSON(ctx context.Context, ids []string, docs []domain.Document) error

	// GetJSON returns one entry per requested id, in request order. Misses are
	// nil documents plus a diagnostic; they never fail the call.
	GetJSON(ctx context.Context, ids []string) (domain.LinkResult, error)

	// DeleteJSON removes one key. Deleting an absent key is not an error.
	DeleteJSON(ctx context.Context, id string) error

	// ConnectionCheck reports store liveness without returning an error.
	ConnectionCheck(ctx context.Context) bool

	// FlushDB removes every record.
	FlushDB(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
