package retriever

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// SemanticRetrieval ranks passages by cosine similarity between the query
// embedding and stored passage embeddings.
type SemanticRetrieval struct {
	linked
	vectorStore port.VectorStore
	embedder    port.Embedder
}

var (
	_ port.Retrieval = (*SemanticRetrieval)(nil)
	_ port.Remover   = (*SemanticRetrieval)(nil)
)

func NewSemanticRetrieval(vectorStore port.VectorStore, embedder port.Embedder, linker port.Linker, logger *zap.Logger) *SemanticRetrieval {
	return &SemanticRetrieval{
		linked:      newLinked(linker, logger),
		vectorStore: vectorStore,
		embedder:    embedder,
	}
}

func (r *SemanticRetrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	valid, errs := r.store(ctx, passages)
	if len(valid) == 0 {
		return errs
	}

	texts := make([]string, len(valid))
	for i, p := range valid {
		texts[i] = p.Content
	}
	vecs, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("failed to embed passages: %w", err))
	}

	items := make([]port.VectorItem, len(valid))
	for i, p := range valid {
		items[i] = port.VectorItem{ID: p.ID, Vector: vecs[i]}
	}
	if err := r.vectorStore.Upsert(items); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to store vectors: %w", err))
	}
	return errs
}

func (r *SemanticRetrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	if err := domain.ValidateTopK(topK); err != nil {
		return domain.RetrievalResult{}, err
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.vectorStore.Search(vec, topK)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("vector search failed: %w", err)
	}

	out := domain.RetrievalResult{
		IDs:    make([]string, len(results)),
		Scores: make([]float64, len(results)),
	}
	for i, res := range results {
		out.IDs[i] = res.ID
		out.Scores[i] = res.Score
	}
	return out, nil
}

func (r *SemanticRetrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := r.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

func (r *SemanticRetrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	return resolve(ctx, r, r.logger, query, topK)
}

// Remove drops passage vectors and documents.
func (r *SemanticRetrieval) Remove(ctx context.Context, ids ...string) error {
	var errs error
	if err := r.vectorStore.Delete(ids); err != nil {
		errs = fmt.Errorf("failed to delete vectors: %w", err)
	}
	return multierr.Append(errs, r.unlink(ctx, ids))
}
