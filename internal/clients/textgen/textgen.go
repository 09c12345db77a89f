// Package textgen adapts hosted language models behind the TextGenerator
// interface. The provider is picked from the model name, and every call goes
// through one shared rate limiter so concurrent memo and screen runs cannot
// blow the provider quota between them.
package textgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Provider identifies the hosted model family behind a generator.
type Provider string

const (
	// ProviderClaude uses the Anthropic API.
	ProviderClaude Provider = "claude"
	// ProviderGemini uses the Google Gemini API.
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultMaxPerMinute is the shared request budget.
	DefaultMaxPerMinute = 10

	// DefaultMaxRetries bounds retries per completion call.
	DefaultMaxRetries = 2

	// DefaultMaxTokens applies when a caller passes no token budget.
	DefaultMaxTokens = 300
)

// DetectProvider determines the provider from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.0-flash" -> Gemini
// - "gemini/gemini-2.0-flash" -> Gemini (with prefix)
func DetectProvider(model string) Provider {
	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	return ProviderGemini
}

// NormalizeModel removes a provider prefix from the model name if present.
func NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Config carries the provider credentials and call budget.
type Config struct {
	Model           string
	AnthropicAPIKey string
	GeminiAPIKey    string
	MaxPerMinute    int
	MaxRetries      int
}

// backend is the provider-specific completion call.
type backend interface {
	complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error)
}

// Generator generates text through a hosted model. It implements
// domain.TextGenerator.
type Generator struct {
	backend    backend
	provider   Provider
	model      string
	limiter    *rate.Limiter
	maxRetries int
	log        zerolog.Logger
}

// New creates a generator for the configured model. It fails when the key
// for the detected provider is missing rather than failing on first use.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Generator, error) {
	provider := DetectProvider(cfg.Model)
	model := NormalizeModel(cfg.Model)

	var b backend
	switch provider {
	case ProviderClaude:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s requires ANTHROPIC_API_KEY", cfg.Model)
		}
		b = newClaudeBackend(cfg.AnthropicAPIKey)
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("model %s requires GEMINI_API_KEY", cfg.Model)
		}
		gb, err := newGeminiBackend(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		b = gb
	}

	maxPerMinute := cfg.MaxPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Generator{
		backend:    b,
		provider:   provider,
		model:      model,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1),
		maxRetries: maxRetries,
		log:        log.With().Str("client", "textgen").Str("provider", string(provider)).Logger(),
	}, nil
}

// Model returns the normalized model name.
func (g *Generator) Model() string {
	return g.model
}

// ProviderType returns the detected provider.
func (g *Generator) ProviderType() Provider {
	return g.provider
}

// Complete generates a completion for a prompt. The call waits on the shared
// limiter first, then retries transient failures with growing backoff. Rate
// limit responses wait longer than ordinary failures.
func (g *Generator) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	var text string
	var apiErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		text, apiErr = g.backend.complete(ctx, g.model, prompt, maxTokens, temperature)
		if apiErr == nil {
			g.log.Debug().
				Str("model", g.model).
				Int("max_tokens", maxTokens).
				Int("chars", len(text)).
				Msg("Generated completion")
			return text, nil
		}

		if attempt == g.maxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if isRateLimitError(apiErr) {
			backoff = time.Duration(attempt+1) * 15 * time.Second
		}

		g.log.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying text generation")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("text generation failed after %d retries: %w", g.maxRetries, apiErr)
}

// isRateLimitError detects quota exhaustion across both providers.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "quota")
}
