package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultURL is the Ollama generation endpoint.
	DefaultURL = "http://localhost:11434/api/generate"

	// DefaultModel is the model every story is generated with.
	DefaultModel = "llama3"

	// errorBodyLimit bounds how much of a failed response body is kept.
	errorBodyLimit = 4 * 1024
)

// Config configures the generation client.
type Config struct {
	// URL is the full generation endpoint (e.g., "http://localhost:11434/api/generate")
	URL string `toml:"url"`

	// Model is sent with every request.
	Model string `toml:"model"`

	// PerChunk switches the accumulator to per-chunk line splitting.
	PerChunk bool `toml:"per_chunk"`
}

// Request is the body POSTed to the generation endpoint.
type Request struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// Client issues generation requests and accumulates the streamed response.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewClient creates a Client. Empty config fields fall back to DefaultURL and
// DefaultModel.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			// Streams can run for minutes; cancellation is left to the context.
			Timeout: 0,
		},
	}
}

// Model returns the model identifier sent upstream.
func (c *Client) Model() string {
	return c.config.Model
}

func (c *Client) splitMode() SplitMode {
	if c.config.PerChunk {
		return SplitPerChunk
	}
	return SplitBuffered
}

// Generate sends prompt to the generation API and returns the accumulated
// text. A non-2xx status fails with RequestFailedError before the body is
// streamed.
func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(Request{Model: c.config.Model, Prompt: prompt})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generation request",
		zap.String("url", c.config.URL),
		zap.String("model", c.config.Model),
		zap.Int("prompt_len", len(prompt)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, errorBodyLimit))
		return Result{}, RequestFailedError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	if httpResp.Body == http.NoBody {
		c.logger.Warn("generation response has no body")
		return Result{}, nil
	}

	result, err := Accumulate(ctx, httpResp.Body, c.splitMode(), c.logger)
	if err != nil {
		return Result{}, err
	}

	c.logger.Debug("generation complete",
		zap.Int("lines", result.Lines),
		zap.Int("skipped", result.Skipped),
		zap.Int("text_len", len(result.Text)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return result, nil
}
