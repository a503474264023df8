package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperpipe/internal/domain"
	"paperpipe/internal/logging"
)

// noKey is the conventional placeholder for local servers that take no key.
const noKey = "not-required"

// Config configures either enrichment backend.
type Config struct {
	Endpoint    string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	// Temperature defaults to DefaultTemperature when nil.
	Temperature *float64
}

// DefaultTemperature keeps replies close to deterministic.
const DefaultTemperature = 0.1

// Temp returns a pointer to t for Config.Temperature.
func Temp(t float64) *float64 { return &t }

func (cfg Config) withDefaults(endpoint string) Config {
	if cfg.Endpoint == "" {
		cfg.Endpoint = endpoint
	}
	if cfg.Model == "" {
		cfg.Model = "local-model"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Temperature == nil {
		cfg.Temperature = Temp(DefaultTemperature)
	}
	return cfg
}

// OpenAIClient is an OpenAI-compatible chat-completions client implementing
// domain.Enricher.
type OpenAIClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ domain.Enricher = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat-completions client from cfg.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		cfg:    cfg.withDefaults("http://localhost:1234/v1/chat/completions"),
		client: &http.Client{},
		logger: logging.OrNop(logger),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Enrich sends one request and validates the returned content. It never
// retries.
func (c *OpenAIClient) Enrich(ctx context.Context, text string) (domain.EnrichedContent, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: BuildPrompt(text)}},
		Temperature:    *c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: encode request: %v", ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" && c.cfg.APIKey != noKey {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	if resp.StatusCode >= 300 {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %s: %s", ErrTransport, resp.Status, strings.TrimSpace(excerpt(payload)))
	}

	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		c.logger.Error("failed to parse LLM response", zap.ByteString("raw", payload))
		return domain.EnrichedContent{}, fmt.Errorf("%w: response envelope: %v", ErrMalformedJSON, err)
	}
	if len(out.Choices) == 0 {
		return domain.EnrichedContent{}, fmt.Errorf("%w: response has no choices", ErrMalformedJSON)
	}
	return ParseContent(out.Choices[0].Message.Content)
}

func excerpt(b []byte) string {
	const limit = 200
	r := []rune(string(b))
	if len(r) > limit {
		r = r[:limit]
	}
	return string(r)
}
