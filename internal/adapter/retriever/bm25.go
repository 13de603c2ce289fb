package retriever

import (
	"context"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"ragchain/internal/adapter/analyzer"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// BM25Retrieval is a keyword engine. Postings live in an IndexStore and
// passage content in a Linker.
type BM25Retrieval struct {
	linked
	index     port.IndexStore
	tokenizer *analyzer.Tokenizer
	k1        float64
	b         float64
}

var (
	_ port.Retrieval = (*BM25Retrieval)(nil)
	_ port.Remover   = (*BM25Retrieval)(nil)
)

func NewBM25Retrieval(index port.IndexStore, linker port.Linker, tokenizer *analyzer.Tokenizer, logger *zap.Logger) *BM25Retrieval {
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer()
	}
	return &BM25Retrieval{
		linked:    newLinked(linker, logger),
		index:     index,
		tokenizer: tokenizer,
		k1:        defaultK1,
		b:         defaultB,
	}
}

func (r *BM25Retrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	valid, errs := r.store(ctx, passages)
	if len(valid) == 0 {
		return errs
	}

	terms := make([]domain.PassageTerms, len(valid))
	for i, p := range valid {
		freqs, n := r.tokenizer.TermFrequencies(p.Content)
		terms[i] = domain.PassageTerms{ID: p.ID, TermFreqs: freqs, Length: n}
	}
	if err := r.index.BatchIndex(terms); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (r *BM25Retrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	if err := domain.ValidateTopK(topK); err != nil {
		return domain.RetrievalResult{}, err
	}

	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return domain.RetrievalResult{}, nil
	}

	stats, err := r.index.GetStats()
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	if stats.TotalPassages == 0 {
		return domain.RetrievalResult{}, nil
	}

	seen := make(map[string]struct{}, len(queryTokens))
	scores := make(map[string]*rank)
	N := float64(stats.TotalPassages)
	avgDl := stats.AvgPassageLen
	if avgDl == 0 {
		avgDl = 1
	}

	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		if err := ctx.Err(); err != nil {
			return domain.RetrievalResult{}, err
		}
		postings, err := r.index.GetPostings(term)
		if err != nil {
			return domain.RetrievalResult{}, err
		}
		if len(postings) == 0 {
			continue
		}

		n := float64(len(postings))
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			dl := float64(posting.Length)
			tf := float64(posting.TF)
			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))

			entry, ok := scores[posting.PassageID]
			if !ok {
				entry = &rank{id: posting.PassageID, seq: posting.Seq}
				scores[posting.PassageID] = entry
			}
			entry.score += score
		}
	}

	ranks := make([]rank, 0, len(scores))
	for _, e := range scores {
		ranks = append(ranks, *e)
	}
	sortRanks(ranks)
	return toResult(ranks, topK), nil
}

func (r *BM25Retrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := r.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

func (r *BM25Retrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	return resolve(ctx, r, r.logger, query, topK)
}

// Remove drops passages from the index and the linker.
func (r *BM25Retrieval) Remove(ctx context.Context, ids ...string) error {
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, r.index.DeletePassage(id))
	}
	return multierr.Append(errs, r.unlink(ctx, ids))
}
