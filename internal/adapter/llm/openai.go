// Package llm adapts chat completion providers to port.LLM.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"ragchain/config"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// OpenAIChat calls the chat completions endpoint of OpenAI or any
// OpenAI-compatible server.
type OpenAIChat struct {
	client       openai.Client
	defaultModel string
}

var _ port.LLM = (*OpenAIChat)(nil)

type Option func(*chatOptions)

type chatOptions struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

func WithBaseURL(url string) Option {
	return func(o *chatOptions) { o.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *chatOptions) { o.httpClient = c }
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(o *chatOptions) { o.model = model }
}

func NewOpenAIChat(apiKey string, opts ...Option) *OpenAIChat {
	cfg := chatOptions{model: "gpt-3.5-turbo"}
	for _, o := range opts {
		o(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAIChat{
		client:       openai.NewClient(reqOpts...),
		defaultModel: cfg.model,
	}
}

// FromConfig builds the chat client used for hypothetical passages. The API
// key is required unless a custom base URL points at a local server.
func FromConfig(cfg config.HyDEConfig) (*OpenAIChat, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		if cfg.BaseURL == "" {
			return nil, domain.NewError(domain.KindMissingCredential, fmt.Sprintf("%s is empty", keyEnv), nil)
		}
		apiKey = "unused"
	}

	opts := []Option{WithDefaultModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return NewOpenAIChat(apiKey, opts...), nil
}

func (c *OpenAIChat) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserMessage))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", domain.Upstream(fmt.Sprintf("chat completion with %s failed", model), err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Upstream("chat completion returned no choices", errors.New("empty choices"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", domain.Upstream("chat completion returned empty content", errors.New("empty content"))
	}
	return text, nil
}
