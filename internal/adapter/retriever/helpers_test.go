package retriever

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"ragchain/internal/adapter/embedding"
	"ragchain/internal/adapter/linker"
	"ragchain/internal/adapter/memstore"
	"ragchain/internal/adapter/store"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var corpus = []domain.Passage{
	{ID: "auth", Content: "User authentication with JWT tokens and OAuth login flows", Metadata: map[string]any{"source": "auth.md"}},
	{ID: "db", Content: "Database connection pooling and query optimization for Postgres", Metadata: map[string]any{"source": "db.md"}},
	{ID: "cache", Content: "Redis cache eviction policies: LRU, LFU and TTL based expiry", Metadata: map[string]any{"source": "cache.md"}},
	{ID: "seoul", Content: "서울은 대한민국의 수도이며 인구가 가장 많은 도시이다", Metadata: map[string]any{"source": "seoul.md"}},
	{ID: "busan", Content: "부산은 대한민국 제2의 도시이며 항구 도시이다", Metadata: map[string]any{"source": "busan.md"}},
}

func newBM25(t *testing.T) (*BM25Retrieval, port.Linker) {
	t.Helper()
	l := linker.NewMemoryLinker(nil)
	return NewBM25Retrieval(memstore.NewMemoryStore(), l, nil, nil), l
}

func newSemantic(t *testing.T) (*SemanticRetrieval, port.Linker) {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	vs, err := store.NewBoltVectorStore(s.DB(), 0)
	require.NoError(t, err)

	l := linker.NewMemoryLinker(nil)
	return NewSemanticRetrieval(vs, embedding.NewMockEmbedder(128), l, nil), l
}

// stubRetrieval records the queries it receives and returns fixed ids.
type stubRetrieval struct {
	mu       sync.Mutex
	queries  []string
	ingested []domain.Passage
	result   domain.RetrievalResult
	docs     map[string]domain.Passage
}

func (s *stubRetrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingested = append(s.ingested, passages...)
	return nil
}

func (s *stubRetrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.result.Truncate(topK), nil
}

func (s *stubRetrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := s.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

func (s *stubRetrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	return resolve(ctx, s, zap.NewNop(), query, topK)
}

func (s *stubRetrieval) Fetch(ctx context.Context, ids []string) (domain.FetchResult, error) {
	out := domain.FetchResult{Passages: make([]*domain.Passage, len(ids))}
	for i, id := range ids {
		if p, ok := s.docs[id]; ok {
			out.Passages[i] = &p
			continue
		}
		out.Diagnostics = append(out.Diagnostics, domain.Diagnostic{ID: id, Index: i, Kind: domain.DiagnosticMissingID})
	}
	return out, nil
}

func (s *stubRetrieval) lastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

// stubLLM returns a canned answer and records the request.
type stubLLM struct {
	answer string
	err    error
	got    port.CompletionRequest
	calls  int
}

func (s *stubLLM) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	s.calls++
	s.got = req
	return s.answer, s.err
}
