// Package ai talks to the OpenRouter chat-completions API and turns model
// output into document structure.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/richmond-dms/docflow/internal/config"
	"go.uber.org/zap"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4000
	maxResponseBytes   = 10 * 1024 * 1024
	maxRetries         = 3
)

var ErrNoAPIKey = errors.New("openrouter API key not configured")

// Completer produces a completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// StatusError is a non-retryable HTTP failure from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter request failed with status %d: %s", e.StatusCode, e.Body)
}

type OpenRouterClient struct {
	apiKey      string
	baseURL     string
	model       string
	siteURL     string
	siteName    string
	temperature float64
	maxTokens   int
	backoff     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

type Option func(*OpenRouterClient)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenRouterClient) { c.httpClient = hc }
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *OpenRouterClient) { c.backoff = d }
}

func WithModel(model string) Option {
	return func(c *OpenRouterClient) {
		if model != "" {
			c.model = model
		}
	}
}

func NewOpenRouterClient(cfg config.OpenRouterConfig, logger *zap.Logger, opts ...Option) *OpenRouterClient {
	c := &OpenRouterClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		siteURL:     cfg.SiteURL,
		siteName:    cfg.SiteName,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		backoff:     time.Second,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.With(zap.String("client", "openrouter")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenRouterClient) Model() string { return c.model }

// Complete retries 429 and 5xx responses with exponential backoff.
func (c *OpenRouterClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.Warn("Retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, retry, err := c.do(ctx, payload)
		if err == nil {
			c.logger.Debug("Completion finished",
				zap.String("model", c.model),
				zap.Duration("duration", time.Since(start)),
				zap.Int("response_len", len(text)))
			return text, nil
		}
		if !retry || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenRouterClient) do(ctx context.Context, payload []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", c.siteName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", true, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode != http.StatusOK:
		return "", false, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}
