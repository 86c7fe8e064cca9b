package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient streams completions from the Gemini API. It can back one of
// the router's fallback candidates alongside the OpenAI-compatible backends.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini streaming client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Stream generates a completion, accumulating streamed parts under the same
// best-effort contract as Client.Stream: partial text on disconnection is a
// success, zero output is ErrEmptyStream.
func (g *GeminiClient) Stream(ctx context.Context, prompt string, observe Observer) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	chunks := make(chan Chunk, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		usage := 0
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				errs <- fmt.Errorf("Gemini stream: %w", err)
				return
			}
			if resp.UsageMetadata != nil && int(resp.UsageMetadata.TotalTokenCount) > usage {
				usage = int(resp.UsageMetadata.TotalTokenCount)
			}
			if text := resp.Text(); text != "" {
				select {
				case chunks <- Chunk{Delta: text, Usage: usage}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	text, _, err := Accumulate(chunks, errs, observe)
	return text, err
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }
