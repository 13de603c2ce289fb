package port

import "context"

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string

	// Optional generation parameters; zero values leave provider defaults.
	Temperature *float64
	MaxTokens   int
}

// LLM represents a language model for text generation.
type LLM interface {
	// Complete sends the request and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
