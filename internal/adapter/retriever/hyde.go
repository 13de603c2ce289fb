package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

const (
	DefaultHyDESystemPrompt = "Please write a passage to answer the question"
	DefaultHyDEModel        = "gpt-3.5-turbo"
)

// HyDERetrieval rewrites each query into a hypothetical answer passage with
// an LLM and searches the inner engine with that passage instead of the
// query. An LLM failure is returned as is; there is no fallback to the raw
// query.
type HyDERetrieval struct {
	inner        port.Retrieval
	llm          port.LLM
	systemPrompt string
	model        string
	temperature  *float64
	maxTokens    int
	logger       *zap.Logger

	mu   sync.RWMutex
	last string
}

var (
	_ port.Retrieval = (*HyDERetrieval)(nil)
	_ port.Remover   = (*HyDERetrieval)(nil)
)

type HyDEOption func(*HyDERetrieval)

func WithSystemPrompt(prompt string) HyDEOption {
	return func(r *HyDERetrieval) {
		if prompt != "" {
			r.systemPrompt = prompt
		}
	}
}

func WithModel(model string) HyDEOption {
	return func(r *HyDERetrieval) {
		if model != "" {
			r.model = model
		}
	}
}

func WithTemperature(t *float64) HyDEOption {
	return func(r *HyDERetrieval) { r.temperature = t }
}

func WithMaxTokens(n int) HyDEOption {
	return func(r *HyDERetrieval) { r.maxTokens = n }
}

func WithLogger(logger *zap.Logger) HyDEOption {
	return func(r *HyDERetrieval) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewHyDERetrieval(inner port.Retrieval, llm port.LLM, opts ...HyDEOption) *HyDERetrieval {
	r := &HyDERetrieval{
		inner:        inner,
		llm:          llm,
		systemPrompt: DefaultHyDESystemPrompt,
		model:        DefaultHyDEModel,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *HyDERetrieval) Ingest(ctx context.Context, passages []domain.Passage) error {
	return r.inner.Ingest(ctx, passages)
}

func (r *HyDERetrieval) RetrieveIDWithScores(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	if err := domain.ValidateTopK(topK); err != nil {
		return domain.RetrievalResult{}, err
	}
	if strings.TrimSpace(query) == "" {
		return domain.RetrievalResult{}, domain.InvalidArgumentf("query must not be empty")
	}

	passage, err := r.hypothetical(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	return r.inner.RetrieveIDWithScores(ctx, passage, topK)
}

func (r *HyDERetrieval) hypothetical(ctx context.Context, query string) (string, error) {
	text, err := r.llm.Complete(ctx, port.CompletionRequest{
		SystemPrompt: r.systemPrompt,
		UserMessage:  fmt.Sprintf("Question: %s\nPassage:", query),
		Model:        r.model,
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamService) {
			return "", err
		}
		return "", domain.Upstream("failed to generate hypothetical passage", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.Upstream("failed to generate hypothetical passage", errors.New("empty completion"))
	}

	r.mu.Lock()
	r.last = text
	r.mu.Unlock()
	r.logger.Info("hyde passage generated",
		zap.String("query", query),
		zap.String("model", r.model),
		zap.String("passage", text))
	return text, nil
}

// LastHypothetical returns the most recent generated passage.
func (r *HyDERetrieval) LastHypothetical() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *HyDERetrieval) RetrieveID(ctx context.Context, query string, topK int) ([]string, error) {
	res, err := r.RetrieveIDWithScores(ctx, query, topK)
	return res.IDs, err
}

func (r *HyDERetrieval) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	return resolve(ctx, r, r.logger, query, topK)
}

func (r *HyDERetrieval) Fetch(ctx context.Context, ids []string) (domain.FetchResult, error) {
	return r.inner.Fetch(ctx, ids)
}

func (r *HyDERetrieval) Remove(ctx context.Context, ids ...string) error {
	return removeFrom(ctx, r.inner, ids)
}
