package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// claudeBackend generates completions through the Anthropic API.
type claudeBackend struct {
	client anthropic.Client
}

func newClaudeBackend(apiKey string) *claudeBackend {
	return &claudeBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (b *claudeBackend) complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}
