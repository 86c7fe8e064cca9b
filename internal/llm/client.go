package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://models.github.ai/inference"

// streamEndSentinel terminates an SSE completion stream.
const streamEndSentinel = "[DONE]"

// Client is an OpenAI-compatible chat-completions client with SSE streaming.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig holds client construction options.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a streaming client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamRequest describes one streaming completion call.
type StreamRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Stream issues one streaming completion against the given model and
// accumulates the response, reporting progress through observe. A stream
// that disconnects after producing output returns the partial text; a
// stream that ends with nothing returns ErrEmptyStream.
func (c *Client) Stream(ctx context.Context, req StreamRequest, observe Observer) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:         req.Model,
		Messages:      messages,
		MaxTokens:     req.MaxTokens,
		Temperature:   0.7,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	chunks := make(chan Chunk, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		usage := 0
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == streamEndSentinel {
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errs <- fmt.Errorf("API error: %s", chunk.Error.Message)
				return
			}
			if chunk.Usage != nil && chunk.Usage.TotalTokens > usage {
				usage = chunk.Usage.TotalTokens
			}

			delta := ""
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil {
				delta = chunk.Choices[0].Delta.Content
			}
			if delta == "" && chunk.Usage == nil {
				continue
			}
			select {
			case chunks <- Chunk{Delta: delta, Usage: usage}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("stream error: %w", err)
		}
	}()

	text, usage, err := Accumulate(chunks, errs, observe)
	if err != nil {
		c.logger.Warn("stream failed",
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	c.logger.Debug("stream complete",
		zap.String("model", req.Model),
		zap.Int("usage_tokens", usage),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}
