package textgen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		model string
		want  Provider
	}{
		{"claude-sonnet-4-20250514", ProviderClaude},
		{"claude/claude-sonnet-4-20250514", ProviderClaude},
		{"anthropic/claude-3-5-haiku", ProviderClaude},
		{"gemini-2.0-flash", ProviderGemini},
		{"gemini/gemini-2.0-flash", ProviderGemini},
		{"google/gemini-2.0-flash", ProviderGemini},
		{"CLAUDE-OPUS", ProviderClaude},
		{"something-else", ProviderGemini},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectProvider(tt.model), "model=%s", tt.model)
	}
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", NormalizeModel("gemini/gemini-2.0-flash"))
	assert.Equal(t, "claude-sonnet-4", NormalizeModel("anthropic/claude-sonnet-4"))
	assert.Equal(t, "gemini-2.0-flash", NormalizeModel("gemini-2.0-flash"))
}

func TestNewRequiresProviderKey(t *testing.T) {
	_, err := New(context.Background(), Config{Model: "claude-sonnet-4"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

// stubBackend fails a fixed number of times before succeeding.
type stubBackend struct {
	failures int
	calls    int
	text     string
	err      error
}

func (s *stubBackend) complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", s.err
	}
	return s.text, nil
}

func newTestGenerator(b backend, maxRetries int) *Generator {
	return &Generator{
		backend:    b,
		provider:   ProviderGemini,
		model:      "test-model",
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: maxRetries,
		log:        zerolog.Nop(),
	}
}

func TestCompleteSuccess(t *testing.T) {
	stub := &stubBackend{text: "generated analysis"}
	g := newTestGenerator(stub, 2)

	text, err := g.Complete(context.Background(), "prompt", 300, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "generated analysis", text)
	assert.Equal(t, 1, stub.calls)
}

func TestCompleteRetriesTransientFailure(t *testing.T) {
	stub := &stubBackend{failures: 1, text: "ok", err: fmt.Errorf("connection reset")}
	g := newTestGenerator(stub, 2)

	start := time.Now()
	text, err := g.Complete(context.Background(), "prompt", 100, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, stub.calls)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second, "first retry backs off 2s")
}

func TestCompleteExhaustsRetries(t *testing.T) {
	stub := &stubBackend{failures: 10, err: fmt.Errorf("boom")}
	g := newTestGenerator(stub, 1)

	_, err := g.Complete(context.Background(), "prompt", 100, 0.2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 retries")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 2, stub.calls)
}

func TestCompleteEmptyPrompt(t *testing.T) {
	g := newTestGenerator(&stubBackend{text: "x"}, 0)

	_, err := g.Complete(context.Background(), "   ", 100, 0.2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty prompt")
}

func TestCompleteCanceledDuringBackoff(t *testing.T) {
	stub := &stubBackend{failures: 10, err: fmt.Errorf("boom")}
	g := newTestGenerator(stub, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := g.Complete(ctx, "prompt", 100, 0.2)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, isRateLimitError(fmt.Errorf("googleapi: Error 429: RESOURCE_EXHAUSTED")))
	assert.True(t, isRateLimitError(fmt.Errorf("anthropic: rate_limit_error")))
	assert.False(t, isRateLimitError(fmt.Errorf("connection refused")))
	assert.False(t, isRateLimitError(nil))
}
