package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAICompleter talks to any OpenAI compatible chat completion endpoint,
// including local Ollama servers.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAICompleter creates an OpenAI compatible completer. An empty
// baseURL targets api.openai.com.
func NewOpenAICompleter(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	// Retries are handled by callers with their own policy.
	opts = append(opts, option.WithMaxRetries(0))

	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

// Complete implements Completer
func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty chat completion response")
	}
	return text, nil
}
