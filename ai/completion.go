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

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/reply"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultModel        = "gpt-3.5-turbo"
	defaultTimeout      = 30 * time.Second
	defaultTemperature  = 0.8
	defaultMaxTokens    = 300
	defaultHistoryLimit = 10

	// responses larger than this are not completions we can use
	maxResponseBytes = 1 << 20
)

var (
	errNoKey        = errors.New("completion api key not configured")
	errBadStatus    = errors.New("completion api returned non-2xx status")
	errNoCompletion = errors.New("completion response has no content")
)

// KeySource supplies the API credential. An empty value means none is set.
type KeySource interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Config configures the completion client. Zero values take the defaults.
type Config struct {
	BaseURL      string
	Model        string
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	return c
}

// CompletionClient answers as the character through an OpenAI-compatible
// chat completions endpoint. Every failure is reported as
// reply.ErrUnavailable so the next strategy takes over. It makes a single
// attempt per message.
type CompletionClient struct {
	cfg     Config
	keys    KeySource
	client  *http.Client
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer
	log     *logger.Logger
}

// NewCompletionClient creates a client. breaker may be nil.
func NewCompletionClient(cfg Config, keys KeySource, breaker *resilience.CircuitBreaker, log *logger.Logger) *CompletionClient {
	cfg = cfg.withDefaults()
	return &CompletionClient{
		cfg:     cfg,
		keys:    keys,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		tracer:  otel.Tracer("whatsjuju-chat/backend/ai"),
		log:     log,
	}
}

// HistoryLimit is the number of earlier messages included in the prompt
func (c *CompletionClient) HistoryLimit() int {
	return c.cfg.HistoryLimit
}

func (c *CompletionClient) Name() string { return "completion" }

// Attempt implements reply.Strategy
func (c *CompletionClient) Attempt(ctx context.Context, req reply.Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, "completion.attempt", trace.WithAttributes(
		attribute.Int64("conversation.id", int64(req.ConversationID)),
		attribute.String("character.slug", req.Character.Slug),
		attribute.String("completion.model", c.cfg.Model),
	))
	defer span.End()

	key, err := c.keys.GetSetting(ctx, models.SettingOpenAIKey)
	if err == nil && strings.TrimSpace(key) == "" {
		err = errNoKey
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %w", reply.ErrUnavailable, err)
	}

	var text string
	call := func() error {
		var callErr error
		text, callErr = c.complete(ctx, strings.TrimSpace(key), req)
		return callErr
	}
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion unavailable")
		c.log.WithContext(ctx).Warn("completion unavailable",
			"conversation_id", req.ConversationID,
			"error", err.Error(),
		)
		return "", fmt.Errorf("%w: %w", reply.ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Int("completion.reply_length", len(text)))
	return text, nil
}

func (c *CompletionClient) complete(ctx context.Context, key string, req reply.Request) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    buildPrompt(req.Character, req.History, req.Content, c.cfg.HistoryLimit),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", errNoCompletion
	}

	return strings.TrimSpace(*parsed.Choices[0].Message.Content), nil
}
