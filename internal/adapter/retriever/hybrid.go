package retriever

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// HybridRetrieval fuses a lexical and a semantic engine with Reciprocal Rank
// Fusion. Both engines are queried concurrently.
type HybridRetrieval struct {
	lexical    port.Retrieval
	semantic   port.Retrieval
	rrfK       int     // RRF constant (typically 60)
	bm25Weight float64 // weight of the lexical ranking (0-1)
	logger     *zap.Logger
}

var (
	_ port.Retrieval = (*HybridRetrieval)(nil)
	_ port.Remover   = (*HybridRetrieval)(nil)
)

func NewHybridRetrieval(lexical, semantic port.Retrieval, rrfK int, bm25Weight float64, logger *zap.Logger) *HybridRetrieval {
	if rrfK <= 0 {
		rrfK = 60
	}
	if bm25Weight < 0 || bm25Weight > 1 {
		bm25Weight = 0.5
	}
	logger = logging.OrNop(logger)
	return &HybridRetrieval{
		lexical:    lexical,
		semantic:   semantic,
		rrfK:       rrfK,
		bm25Weight: bm25Weight,
		logger:     logger,
	}
}

// Ingest feeds both engines. They share a linker, so documents are written
// twice with the same content. A failure in one engine does not cancel the
// other; both errors are returned.
func (r *HybridRetrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	var lexErr, semErr error
	var g errgroup.Group
	g.Go(func() error {
		lexErr = r.lexical.Ingest(ctx, passages)
		return nil
	})
	g.Go(func() error {
		semErr = r.semantic.Ingest(ctx, passages)
		return nil
	})
	_ = g.Wait()
	return multierr.Combine(lexErr, semErr)
}

func (r *HybridRetrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	if err := domain.ValidateTopK(topK); err != nil {
		return domain.RetrievalResult{}, err
	}

	candidateK := max(topK*3, 20)

	var lexical, semantic domain.RetrievalResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = r.lexical.RetrieveIDWithScores(gctx, query, candidateK)
		return err
	})
	g.Go(func() error {
		var err error
		semantic, err = r.semantic.RetrieveIDWithScores(gctx, query, candidateK)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.RetrievalResult{}, err
	}

	return r.fuse(lexical, semantic).Truncate(topK), nil
}

// fuse combines two rankings. RRF score = sum of w/(k + rank) over the lists
// containing the id. Ties keep lexical order first, then semantic order.
func (r *HybridRetrieval) fuse(lexical, semantic domain.RetrievalResult) domain.RetrievalResult {
	byID := make(map[string]*rank)
	var order uint64
	add := func(ids []string, weight float64) {
		for i, id := range ids {
			e, ok := byID[id]
			if !ok {
				order++
				e = &rank{id: id, seq: order}
				byID[id] = e
			}
			e.score += weight / float64(r.rrfK+i+1)
		}
	}
	add(lexical.IDs, r.bm25Weight)
	add(semantic.IDs, 1-r.bm25Weight)

	ranks := make([]rank, 0, len(byID))
	for _, e := range byID {
		ranks = append(ranks, *e)
	}
	sortRanks(ranks)
	return toResult(ranks, len(ranks))
}

func (r *HybridRetrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := r.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

func (r *HybridRetrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	return resolve(ctx, r, r.logger, query, topK)
}

// Fetch resolves through the lexical engine's linker.
func (r *HybridRetrieval) Fetch(ctx context.Context, ids []string) (domain.FetchResult, error) {
	return r.lexical.Fetch(ctx, ids)
}

// Remove drops passages from both engines.
func (r *HybridRetrieval) Remove(ctx context.Context, ids ...string) error {
	return multierr.Combine(
		removeFrom(ctx, r.lexical, ids),
		removeFrom(ctx, r.semantic, ids),
	)
}
