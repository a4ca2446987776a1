// Package llm adapts text completion providers behind a single interface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/leadchat/internal/config"
)

// Provider names accepted in configuration
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Completer turns a prompt into generated text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New creates the completer selected by cfg.Provider. model overrides
// cfg.Model when not empty.
func New(ctx context.Context, cfg config.LLMConfig, model string) (Completer, error) {
	if model == "" {
		model = cfg.Model
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGeminiCompleter(ctx, cfg.APIKey, model, cfg.Temperature, cfg.Timeout)
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg.BaseURL, cfg.APIKey, model, cfg.Temperature, cfg.Timeout), nil
	case ProviderMock:
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// Retry calls fn up to attempts times. The wait before attempt n+1 is
// delay*n. It stops early when ctx is done.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", attempts, lastErr)
}
