package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiCompleter generates text with the Gemini API
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiCompleter creates a Gemini backed completer. A positive timeout
// bounds every request.
func NewGeminiCompleter(ctx context.Context, apiKey, model string, temperature float64, timeout time.Duration) (*GeminiCompleter, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if timeout > 0 {
		cc.HTTPOptions = genai.HTTPOptions{Timeout: &timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCompleter{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// Complete implements Completer
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in Gemini response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("empty response text from Gemini")
	}
	return text, nil
}
