package planner

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete makes a single-turn API call to Anthropic Claude.
func (p *AnthropicProvider) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		MaxTokens: int64(request.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}

	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(request.Temperature)
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	content := ""
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	return content, nil
}
