package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

const defaultBatchSize = 100

// OpenAICompatible embeds text through any server that speaks the OpenAI
// /embeddings API: OpenAI itself, or a text-embeddings-inference server
// hosting a HuggingFace model.
type OpenAICompatible struct {
	client        openai.Client
	model         string
	dimension     int
	sendDimension bool
	batchSize     int
	queryPrefix   string
	docPrefix     string
}

var _ port.Embedder = (*OpenAICompatible)(nil)

type clientOptions struct {
	baseURL       string
	httpClient    *http.Client
	dimension     int
	sendDimension bool
	batchSize     int
	queryPrefix   string
	docPrefix     string
}

// Option configures an OpenAICompatible embedder.
type Option func(*clientOptions)

func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithDimension sets the reported dimension. When request is true the
// dimension is also sent to the server, which only some models accept.
func WithDimension(dim int, request bool) Option {
	return func(o *clientOptions) {
		o.dimension = dim
		o.sendDimension = request && dim > 0
	}
}

func WithBatchSize(n int) Option {
	return func(o *clientOptions) { o.batchSize = n }
}

// WithPrefixes prepends fixed markers to queries and documents, as the E5
// models expect ("query: ", "passage: ").
func WithPrefixes(query, doc string) Option {
	return func(o *clientOptions) {
		o.queryPrefix = query
		o.docPrefix = doc
	}
}

func NewOpenAICompatible(apiKey, model string, opts ...Option) *OpenAICompatible {
	cfg := clientOptions{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		batchSize:  defaultBatchSize,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAICompatible{
		client:        openai.NewClient(reqOpts...),
		model:         model,
		dimension:     cfg.dimension,
		sendDimension: cfg.sendDimension,
		batchSize:     cfg.batchSize,
		queryPrefix:   cfg.queryPrefix,
		docPrefix:     cfg.docPrefix,
	}
}

func (e *OpenAICompatible) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.InvalidArgumentf("cannot embed empty query")
	}
	vecs, err := e.embed(ctx, []string{e.queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAICompatible) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := texts
	if e.docPrefix != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = e.docPrefix + t
		}
	}
	return e.embed(ctx, inputs)
}

func (e *OpenAICompatible) embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vecs, err := e.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, domain.Upstream(fmt.Sprintf("embedding batch [%d:%d] with %s failed", i, end, e.model), err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (e *OpenAICompatible) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.sendDimension {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vecs[idx] = toFloat32(item.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}

// Dimension returns the configured dimension, or 0 until it is known.
func (e *OpenAICompatible) Dimension() int {
	return e.dimension
}

func (e *OpenAICompatible) ModelName() string {
	return e.model
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
