package clients

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the model answers without any text.
var ErrEmptyCompletion = errors.New("model returned no content")

type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// LLMClient performs a single, non-streaming completion.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}
