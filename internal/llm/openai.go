package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/supportdesk/internal/metrics"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
)

// Config holds configuration for the OpenAI-compatible client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float32
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxConcurrency int
}

// DefaultConfig targets a local Ollama server through its OpenAI-compatible API.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:11434/v1",
		APIKey:         "ollama",
		Model:          "llama3.2:1b",
		Temperature:    0.2,
		Timeout:        60 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: 500 * time.Millisecond,
		MaxConcurrency: 4,
	}
}

// Client generates text through an OpenAI-compatible chat completion API.
type Client struct {
	client *openai.Client
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewClient creates a new generation client. Zero-valued fields in cfg fall
// back to DefaultConfig.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger: logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate sends prompt as a single user message and returns the reply text.
// Each attempt is bounded by the configured timeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire generation slot: %w", err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	var result string
	err := c.doWithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: c.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errEmptyResponse
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return errEmptyResponse
		}
		result = content
		return nil
	})
	metrics.RecordGeneration(c.cfg.Model, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == c.cfg.MaxRetries-1 {
			break
		}
		wait := c.cfg.RetryBaseDelay * time.Duration(1<<attempt)
		c.logger.Debug("Generation failed, retrying",
			"attempt", attempt+1,
			"wait", wait,
			"error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
