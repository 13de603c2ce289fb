package retriever

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragchain/internal/adapter/linker"
	"ragchain/internal/adapter/store"
	"ragchain/internal/domain"
)

func TestBM25Retrieval_Ranking(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()
	require.NoError(t, r.Ingest(ctx, corpus))

	res, err := r.RetrieveIDWithScores(ctx, "JWT authentication", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, "auth", res.IDs[0])
	assert.Equal(t, len(res.IDs), len(res.Scores))
	for i := 1; i < len(res.Scores); i++ {
		assert.GreaterOrEqual(t, res.Scores[i-1], res.Scores[i])
	}

	res, err = r.RetrieveIDWithScores(ctx, "대한민국의 수도", 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, "seoul", res.IDs[0])
}

func TestBM25Retrieval_TopK(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()
	require.NoError(t, r.Ingest(ctx, corpus))

	res, err := r.RetrieveIDWithScores(ctx, "도시이다 대한민국 cache database", 1)
	require.NoError(t, err)
	assert.Len(t, res.IDs, 1)
	assert.Len(t, res.Scores, 1)

	for _, k := range []int{0, -3} {
		_, err = r.RetrieveIDWithScores(ctx, "cache", k)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = r.Retrieve(ctx, "cache", k)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
}

func TestBM25Retrieval_EmptyQueryAndIndex(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()

	res, err := r.RetrieveIDWithScores(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	require.NoError(t, r.Ingest(ctx, corpus))
	res, err = r.RetrieveIDWithScores(ctx, "the a !!", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestBM25Retrieval_TiesKeepInsertionOrder(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()
	require.NoError(t, r.Ingest(ctx, []domain.Passage{
		{ID: "z-first", Content: "identical words here"},
		{ID: "a-second", Content: "identical words here"},
	}))

	ids, err := r.RetrieveID(ctx, "identical", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"z-first", "a-second"}, ids)
}

func TestBM25Retrieval_RetrieveAndFetch(t *testing.T) {
	r, l := newBM25(t)
	ctx := context.Background()
	require.NoError(t, r.Ingest(ctx, corpus))

	passages, err := r.Retrieve(ctx, "redis eviction", 2)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "cache", passages[0].ID)
	assert.Equal(t, corpus[2].Content, passages[0].Content)
	assert.Equal(t, "cache.md", passages[0].Metadata["source"])

	// content removed behind the index's back is omitted from Retrieve
	require.NoError(t, l.DeleteJSON(ctx, "cache"))
	passages, err = r.Retrieve(ctx, "redis eviction", 2)
	require.NoError(t, err)
	for _, p := range passages {
		assert.NotEqual(t, "cache", p.ID)
	}

	fetched, err := r.Fetch(ctx, []string{"auth", "cache"})
	require.NoError(t, err)
	require.Len(t, fetched.Passages, 2)
	assert.NotNil(t, fetched.Passages[0])
	assert.Nil(t, fetched.Passages[1])
	assert.Equal(t, "cache", fetched.Diagnostics[0].ID)
}

func TestBM25Retrieval_IngestReportsInvalidPassages(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()

	err := r.Ingest(ctx, []domain.Passage{
		{ID: "", Content: "no id"},
		{ID: "ok", Content: "valid passage text"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	ids, err := r.RetrieveID(ctx, "valid", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids)
}

func TestBM25Retrieval_ReingestReplaces(t *testing.T) {
	r, _ := newBM25(t)
	ctx := context.Background()

	require.NoError(t, r.Ingest(ctx, []domain.Passage{{ID: "p", Content: "alpha"}}))
	require.NoError(t, r.Ingest(ctx, []domain.Passage{{ID: "p", Content: "beta"}}))

	ids, err := r.RetrieveID(ctx, "alpha", 3)
	require.NoError(t, err)
	assert.Empty(t, ids)

	passages, err := r.Retrieve(ctx, "beta", 3)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "beta", passages[0].Content)

	require.NoError(t, r.Remove(ctx, "p"))
	ids, err = r.RetrieveID(ctx, "beta", 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBM25Retrieval_BoltBackends(t *testing.T) {
	dir := t.TempDir()
	idx, err := store.NewBoltStore(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	defer idx.Close()
	l, err := linker.NewBoltLinker(filepath.Join(dir, "linker.db"), nil)
	require.NoError(t, err)
	defer l.Close()

	r := NewBM25Retrieval(idx, l, nil, nil)
	ctx := context.Background()
	require.NoError(t, r.Ingest(ctx, corpus))

	passages, err := r.Retrieve(ctx, "connection pooling", 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "db", passages[0].ID)
}

func TestBM25Retrieval_LinkerFailure(t *testing.T) {
	l := linker.NewMemoryLinker(nil)
	r, _ := newBM25(t)
	r.linked = newLinked(l, nil)
	require.NoError(t, l.Close())

	err := r.Ingest(context.Background(), corpus[:1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLinkerConnectivity))
}
