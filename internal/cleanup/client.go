// Package cleanup rewrites noisy OCR and transcription output into
// readable text through an Anthropic-style messages endpoint. Cleanup
// is always optional: every failure mode leaves the caller holding the
// original raw text.
package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/extract"
)

// Cleaner rewrites raw extracted text. An error means the caller must
// keep the original text; implementations never return partial output.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// Config carries the client's knobs. Zero values get usable defaults,
// except APIKey, which the caller checks before constructing a client
// at all.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	RPS       float64
}

// Client calls the messages endpoint with a fixed cleanup system
// prompt. A local rate limiter keeps a burst of low-confidence
// documents from tripping the provider's throttling.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	limiter    *rate.Limiter
	httpClient *http.Client

	// Stats aggregates recent call latencies for the stats endpoint.
	Stats *Stats
}

var _ Cleaner = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-20241022"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}

	return &Client{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		Stats: NewStats(time.Hour),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Clean sends text through the model and returns the cleaned version.
// The output is validated against the input before being accepted;
// a response that lost or invented content is reported as an error so
// the document keeps its raw text.
func (c *Client) Clean(ctx context.Context, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	cleaned, err := c.post(ctx, text)
	c.Stats.Record(time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", err
	}

	if err := validateCleaned(text, cleaned); err != nil {
		return "", fmt.Errorf("rejecting cleanup output: %w", err)
	}
	return cleaned, nil
}

func (c *Client) post(ctx context.Context, text string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: text},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("cleanup api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &domain.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: extract.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cleanup api status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("cleanup error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response from cleanup api")
	}

	return strings.TrimSpace(apiResp.Content[0].Text), nil
}

// Model returns the configured model name for logs and stats.
func (c *Client) Model() string {
	return c.model
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
