package planner

import (
	"context"
	"fmt"
)

// Provider is an interface for text-generation API providers.
type Provider interface {
	// Complete sends a single-turn prompt and returns the raw text reply.
	Complete(ctx context.Context, request CompletionRequest) (string, error)

	// Name returns the provider name.
	Name() string
}

// CompletionRequest contains the parameters of one completion call.
type CompletionRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// NewProvider creates a provider by name.
func NewProvider(name, apiKey string) (Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
