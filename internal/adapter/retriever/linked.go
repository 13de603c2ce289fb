package retriever

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/logging"
	"ragchain/internal/port"
)

// linked is the content half of an engine: passages live in a Linker,
// addressed by the ids the index returns.
type linked struct {
	linker port.Linker
	logger *zap.Logger
}

func newLinked(linker port.Linker, logger *zap.Logger) linked {
	logger = logging.OrNop(logger)
	return linked{linker: linker, logger: logger}
}

// Fetch resolves ids positionally through the linker.
func (l linked) Fetch(ctx context.Context, ids []string) (domain.FetchResult, error) {
	if len(ids) == 0 {
		return domain.FetchResult{}, nil
	}
	res, err := l.linker.GetJSON(ctx, ids)
	if err != nil {
		return domain.FetchResult{}, err
	}

	out := domain.FetchResult{
		Passages:    make([]*domain.Passage, len(ids)),
		Diagnostics: res.Diagnostics,
	}
	for i, doc := range res.Documents {
		if doc == nil {
			continue
		}
		p := domain.PassageFromDocument(ids[i], doc)
		out.Passages[i] = &p
	}
	return out, nil
}

// store writes passage documents and returns the passages that were valid.
// Invalid passages are reported in the aggregated error but do not block
// the rest of the batch.
func (l linked) store(ctx context.Context, passages []domain.Passage) ([]domain.Passage, error) {
	var errs error
	valid := make([]domain.Passage, 0, len(passages))
	seen := make(map[string]int, len(passages))
	for i, p := range passages {
		if p.ID == "" {
			errs = multierr.Append(errs, domain.InvalidArgumentf("passage %d has an empty id", i))
			continue
		}
		// last write wins inside one batch
		if j, dup := seen[p.ID]; dup {
			valid[j] = p
			continue
		}
		seen[p.ID] = len(valid)
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return nil, errs
	}

	ids := make([]string, len(valid))
	docs := make([]domain.Document, len(valid))
	for i, p := range valid {
		ids[i] = p.ID
		docs[i] = p.ToDocument()
	}
	if err := l.linker.PutJSON(ctx, ids, docs); err != nil {
		return nil, multierr.Append(errs, fmt.Errorf("failed to store passages: %w", err))
	}
	return valid, errs
}

// unlink deletes the documents of ids from the linker.
func (l linked) unlink(ctx context.Context, ids []string) error {
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, l.linker.DeleteJSON(ctx, id))
	}
	return errs
}

// removeFrom removes ids through r when it supports removal.
func removeFrom(ctx context.Context, r port.Retrieval, ids []string) error {
	rm, ok := r.(port.Remover)
	if !ok {
		return domain.InvalidArgumentf("%T does not support removal", r)
	}
	return rm.Remove(ctx, ids...)
}

// resolve runs the id lookup and returns found passages in rank order.
// Ids with no stored content are skipped and logged.
func resolve(ctx context.Context, r port.Retrieval, logger *zap.Logger, query string, topK int) ([]domain.Passage, error) {
	ids, err := r.RetrieveID(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	fetched, err := r.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range fetched.Diagnostics {
		logger.Warn("retrieved id has no stored passage, omitting",
			zap.String("id", d.ID), zap.String("kind", string(d.Kind)))
	}
	return fetched.Found(), nil
}

// rank is a scored candidate; seq breaks ties by insertion order.
type rank struct {
	id    string
	score float64
	seq   uint64
}

func sortRanks(ranks []rank) {
	sort.Slice(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.id < b.id
	})
}

func toResult(ranks []rank, topK int) domain.RetrievalResult {
	if len(ranks) > topK {
		ranks = ranks[:topK]
	}
	res := domain.RetrievalResult{
		IDs:    make([]string, len(ranks)),
		Scores: make([]float64, len(ranks)),
	}
	for i, r := range ranks {
		res.IDs[i] = r.id
		res.Scores[i] = r.score
	}
	return res
}
