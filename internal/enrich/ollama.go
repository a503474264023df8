package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"paperpipe/internal/domain"
	"paperpipe/internal/logging"
)

// OllamaClient enriches text through an Ollama server's chat endpoint.
type OllamaClient struct {
	cfg    Config
	api    *api.Client
	logger *zap.Logger
}

var _ domain.Enricher = (*OllamaClient)(nil)

// NewOllamaClient creates a client for the server at cfg.Endpoint.
func NewOllamaClient(cfg Config, logger *zap.Logger) (*OllamaClient, error) {
	cfg = cfg.withDefaults("http://localhost:11434")
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama endpoint: %w", err)
	}
	return &OllamaClient{
		cfg:    cfg,
		api:    api.NewClient(base, &http.Client{}),
		logger: logging.OrNop(logger),
	}, nil
}

// Enrich sends one non-streaming chat request in JSON mode.
func (c *OllamaClient) Enrich(ctx context.Context, text string) (domain.EnrichedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model:    c.cfg.Model,
		Messages: []api.Message{{Role: "user", Content: BuildPrompt(text)}},
		Stream:   &stream,
		Format:   json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": *c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	var content strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return domain.EnrichedContent{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.logger.Debug("ollama reply received", zap.Int("bytes", content.Len()))
	return ParseContent(content.String())
}

// New builds the enricher for backend ("openai" or "ollama").
func New(backend string, cfg Config, logger *zap.Logger) (domain.Enricher, error) {
	switch backend {
	case "", "openai":
		return NewOpenAIClient(cfg, logger), nil
	case "ollama":
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
}
