package textgen

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiBackend generates completions through the Google Gemini API.
type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, apiKey string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (b *geminiBackend) complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	return text, nil
}
