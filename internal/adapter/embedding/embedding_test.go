package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragchain/internal/domain"
)

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions"`
}

// fakeEmbeddingServer answers OpenAI-style embedding calls. The vector for
// input i is [len(text), i]. Requests are recorded.
func fakeEmbeddingServer(t *testing.T) (*httptest.Server, *[]embedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		data := make([]map[string]any, len(req.Input))
		// reversed order, clients must place by index
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     j,
				"embedding": []float64{float64(len(req.Input[j])), float64(j)},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestOpenAICompatible_BatchesAndOrders(t *testing.T) {
	srv, seen := fakeEmbeddingServer(t)
	e := NewOpenAICompatible("key", "test-model", WithBaseURL(srv.URL), WithBatchSize(2), WithDimension(2, false))

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{2, 1}, vecs[1])
	assert.Equal(t, []float32{3, 0}, vecs[2])

	require.Len(t, *seen, 2)
	assert.Equal(t, "test-model", (*seen)[0].Model)
	assert.Nil(t, (*seen)[0].Dimensions)
	assert.Equal(t, 2, e.Dimension())
}

func TestOpenAICompatible_Prefixes(t *testing.T) {
	srv, seen := fakeEmbeddingServer(t)
	e := NewOpenAICompatible("key", "e5", WithBaseURL(srv.URL), WithPrefixes("query: ", "passage: "))

	_, err := e.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	_, err = e.EmbedDocuments(context.Background(), []string{"doc"})
	require.NoError(t, err)

	assert.Equal(t, []string{"query: hi"}, (*seen)[0].Input)
	assert.Equal(t, []string{"passage: doc"}, (*seen)[1].Input)
}

func TestOpenAICompatible_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAICompatible("key", "nope", WithBaseURL(srv.URL))
	_, err := e.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrUpstreamService)
}

func TestOpenAICompatible_EmptyInput(t *testing.T) {
	e := NewOpenAICompatible("key", "m", WithBaseURL("http://127.0.0.1:1"))

	_, err := e.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	vecs, err := e.EmbedDocuments(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestParseFamily_Aliases(t *testing.T) {
	cases := map[string]Family{
		"openai":                FamilyOpenAI,
		"OpenAI":                FamilyOpenAI,
		"KoSimCSE":              FamilyKoSimCSE,
		"KoSimcse":              FamilyKoSimCSE,
		"koSimCSE":              FamilyKoSimCSE,
		"kosimCSE":              FamilyKoSimCSE,
		"ko_sroberta_multitask": FamilyKoSRoBERTaMultitask,
		"ko-sroberta-multitask": FamilyKoSRoBERTaMultitask,
		"multilingual_e5":       FamilyMultilingualE5,
		" Multilingual-E5 ":     FamilyMultilingualE5,
		"mock":                  FamilyMock,
	}
	for in, want := range cases {
		got, err := ParseFamily(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	_, err := ParseFamily("word2vec")
	assert.ErrorIs(t, err, domain.ErrUnknownEmbedding)
	assert.Contains(t, err.Error(), "word2vec")
}

func TestParseDevice(t *testing.T) {
	assert.Equal(t, DeviceCPU, ParseDevice("CPU"))
	assert.Equal(t, DeviceMPS, ParseDevice("mps"))
	assert.Equal(t, DeviceCUDA, ParseDevice("cuda"))
	assert.Equal(t, DeviceCUDA, ParseDevice("tpu"))
	assert.Equal(t, DeviceCUDA, ParseDevice(""))
}

func TestSelector_OpenAIRequiresKey(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "")

	s, err := NewSelector("openai", "cpu", SelectorOptions{}, nil)
	require.NoError(t, err)

	_, err = s.Get()
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	// a later call succeeds once the key is present
	t.Setenv(EnvOpenAIKey, "sk-test")
	h, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, FamilyOpenAI, h.Family)
	assert.Equal(t, defaultOpenAIModel, h.ModelName())
}

func TestSelector_UnknownFamily(t *testing.T) {
	_, err := NewSelector("glove", "cuda", SelectorOptions{}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownEmbedding)
}

func TestSelector_HostedFamilies(t *testing.T) {
	srv, seen := fakeEmbeddingServer(t)

	cases := []struct {
		family string
		model  string
		dim    int
	}{
		{"kosimcse", "BM-K/KoSimCSE-roberta-multitask", 768},
		{"ko_sroberta_multitask", "jhgan/ko-sroberta-multitask", 768},
		{"multilingual_e5", "intfloat/multilingual-e5-large", 1024},
	}
	for _, tc := range cases {
		s, err := NewSelector(tc.family, "mps", SelectorOptions{BaseURL: srv.URL}, nil)
		require.NoError(t, err)

		h, err := s.Get()
		require.NoError(t, err, tc.family)
		assert.Equal(t, tc.model, h.ModelName())
		assert.Equal(t, tc.dim, h.Dimension())
		assert.Equal(t, DeviceMPS, h.Device)

		_, err = h.EmbedQuery(context.Background(), "질문")
		require.NoError(t, err)
		assert.Equal(t, tc.model, (*seen)[len(*seen)-1].Model)
	}
}

func TestSelector_GetIsShared(t *testing.T) {
	s, err := NewSelector("mock", "", SelectorOptions{Dimension: 16}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Get()
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, 16, handles[0].Dimension())
}

func TestSelector_ConcurrentFirstUse(t *testing.T) {
	srv, seen := fakeEmbeddingServer(t)
	s, err := NewSelector("kosimcse", "cuda", SelectorOptions{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	handles := make([]*Handle, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Get()
			if !assert.NoError(t, err) {
				return
			}
			handles[i] = h
			v, err := h.EmbedQuery(context.Background(), "question")
			if assert.NoError(t, err) {
				assert.Equal(t, []float32{8, 0}, v)
			}
		}(i)
	}
	wg.Wait()

	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
	assert.Len(t, *seen, workers)
}

func TestMockEmbedder_SimilarTextsAreClose(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	q, _ := e.EmbedQuery(ctx, "redis cache eviction")
	docs, err := e.EmbedDocuments(ctx, []string{"cache eviction in redis", "baking sourdough bread"})
	require.NoError(t, err)

	dot := func(a, b []float32) float32 {
		var s float32
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}
	assert.Greater(t, dot(q, docs[0]), dot(q, docs[1]))
}
