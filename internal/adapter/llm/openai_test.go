package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragchain/config"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

func fakeChatServer(t *testing.T, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		choices := []map[string]any{}
		if content != "<none>" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-3.5-turbo",
			"choices": choices,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChat_Complete(t *testing.T) {
	var got chatRequest
	srv := fakeChatServer(t, "  Paris is the capital.  ", &got)

	temp := 0.2
	c := NewOpenAIChat("key", WithBaseURL(srv.URL))
	text, err := c.Complete(context.Background(), port.CompletionRequest{
		SystemPrompt: "sys",
		UserMessage:  "Question: capital?\nPassage:",
		MaxTokens:    64,
		Temperature:  &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", text)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 64, *got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
}

func TestOpenAIChat_ModelOverride(t *testing.T) {
	var got chatRequest
	srv := fakeChatServer(t, "ok", &got)

	c := NewOpenAIChat("key", WithBaseURL(srv.URL), WithDefaultModel("local-model"))
	_, err := c.Complete(context.Background(), port.CompletionRequest{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "local-model", got.Model)
	assert.Len(t, got.Messages, 1)

	_, err = c.Complete(context.Background(), port.CompletionRequest{UserMessage: "hi", Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", got.Model)
}

func TestOpenAIChat_EmptyResponses(t *testing.T) {
	for _, content := range []string{"", "<none>"} {
		srv := fakeChatServer(t, content, nil)
		c := NewOpenAIChat("key", WithBaseURL(srv.URL))

		_, err := c.Complete(context.Background(), port.CompletionRequest{UserMessage: "q"})
		assert.ErrorIs(t, err, domain.ErrUpstreamService)
	}
}

func TestOpenAIChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIChat("key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), port.CompletionRequest{UserMessage: "q"})
	assert.ErrorIs(t, err, domain.ErrUpstreamService)
}

func TestFromConfig_Credentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := FromConfig(config.HyDEConfig{Model: "gpt-3.5-turbo"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	// a local endpoint works without a key
	c, err := FromConfig(config.HyDEConfig{Model: "llama", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "llama", c.defaultModel)
}
