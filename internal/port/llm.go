package port

import (
	"context"

	"rfprag/internal/domain"
)

// ChatOptions configures a single completion call.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLM is a single round trip to an external chat completion model.
type LLM interface {
	Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	ModelName() string
}
