// Package grobid is a client for the GROBID document-analysis service.
package grobid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperpipe/internal/domain"
	"paperpipe/internal/logging"
)

const (
	alivePath    = "/api/isalive"
	fulltextPath = "/api/processFulltextDocument"

	// excerptLen bounds the response body quoted in a status error.
	excerptLen = 200
)

// Config configures the GROBID client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PingTimeout time.Duration
}

// Client talks to a GROBID server. It implements domain.Converter.
type Client struct {
	baseURL     string
	timeout     time.Duration
	pingTimeout time.Duration
	client      *http.Client
	logger      *zap.Logger
}

var _ domain.Converter = (*Client)(nil)

// NewClient creates a client from cfg, filling unset timeouts with the
// service defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8070"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		pingTimeout: cfg.PingTimeout,
		client:      &http.Client{},
		logger:      logging.OrNop(logger),
	}
}

// Ping checks that the server answers its liveness endpoint with 200.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+alivePath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("could not reach GROBID server", zap.String("url", c.baseURL), zap.Error(err))
		return fmt.Errorf("%w at %s: %v", domain.ErrServiceUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("GROBID server not healthy", zap.String("url", c.baseURL), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w at %s: status %d", domain.ErrServiceUnavailable, c.baseURL, resp.StatusCode)
	}
	c.logger.Info("GROBID server is active", zap.String("url", c.baseURL))
	return nil
}

// Convert uploads the PDF and returns the TEI markup verbatim.
func (c *Client) Convert(ctx context.Context, doc domain.SourceDocument) ([]byte, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("reading source document: %w", err)
	}

	body, contentType, err := multipartBody(doc.Name, data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fulltextPath, body)
	if err != nil {
		return nil, fmt.Errorf("a network error occurred: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("processing document with GROBID", zap.String("document", doc.Name))
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		return nil, fmt.Errorf("a network error occurred: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		return nil, fmt.Errorf("a network error occurred: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GROBID returned status %d. Response: %s...", resp.StatusCode, excerpt(payload))
	}
	return payload, nil
}

func multipartBody(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	h.Set("Expires", "0")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func excerpt(b []byte) string {
	r := []rune(string(b))
	if len(r) > excerptLen {
		r = r[:excerptLen]
	}
	return string(r)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
