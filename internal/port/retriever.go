package port

import (
	"context"

	"ragchain/internal/domain"
)

// Retrieval turns a query into scored passage identifiers and ingests new
// passages. Any backend (keyword, vector, hybrid, decorators) implements it.
type Retrieval interface {
	// Ingest upserts passages into the backing index. One failing passage
	// does not stop the others; the returned error aggregates all failures.
	Ingest(ctx context.Context, passages []domain.Passage) error

	// RetrieveIDWithScores returns at most topK ids ordered by descending score.
	// topK <= 0 fails with domain.ErrInvalidArgument.
	RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error)

	// RetrieveID is RetrieveIDWithScores without the scores.
	RetrieveID(ctx context.Context, query string, topK int) ([]string, error)

	// Retrieve resolves the retrieved ids into passages. IDs without stored
	// content are omitted; use Fetch for positional resolution.
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error)

	// Fetch resolves ids positionally; misses are nil entries plus diagnostics.
	Fetch(ctx context.Context, ids []string) (domain.FetchResult, error)
}

// Remover deletes passages from an engine's index and from its linker.
// Removing an unknown id is not an error.
type Remover interface {
	Remove(ctx context.Context, ids ...string) error
}
