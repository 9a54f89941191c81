// Package llm provides the chat-completions client and the patch
// generation port built on top of it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTimeout marks a generation request that exceeded its deadline.
var ErrTimeout = errors.New("generation request timed out")

// APIError is a typed upstream failure carrying the HTTP status and raw
// response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation API error %d: %s", e.Status, truncate(e.Body, 200))
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds the token counts reported for one request plus an estimated
// cost.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Cost             float64
}

// Config configures a chat client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	// Cost per 1K tokens, for reporting only.
	CostPer1KPrompt     float64
	CostPer1KCompletion float64
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a chat client. The HTTP client carries no timeout of
// its own; each request gets a context deadline from cfg.Timeout.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{cfg: cfg, httpClient: &http.Client{}}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends the messages and returns the first choice's content plus
// usage. Retriable statuses (429 and 5xx) are retried with exponential
// backoff up to MaxRetries attempts; anything else aborts immediately.
// A deadline hit returns ErrTimeout.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, Usage, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", Usage{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
			backoff *= 2
		}

		content, usage, err := c.doChat(ctx, body)
		if err == nil {
			return content, usage, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && retriableStatus(apiErr.Status) {
			continue
		}
		return "", Usage{}, err
	}
	return "", Usage{}, fmt.Errorf("chat exhausted %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) doChat(ctx context.Context, body []byte) (string, Usage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", Usage{}, ErrTimeout
		}
		return "", Usage{}, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", Usage{}, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, &APIError{Status: resp.StatusCode, Body: "response contained no choices"}
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	usage.Cost = float64(usage.PromptTokens)/1000*c.cfg.CostPer1KPrompt +
		float64(usage.CompletionTokens)/1000*c.cfg.CostPer1KCompletion
	return parsed.Choices[0].Message.Content, usage, nil
}

func retriableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
