package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

var _ domain.Completion = (*Completion)(nil)

// CompletionConfig holds the chat completion settings.
type CompletionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	User        string
	Logger      *zap.Logger
}

// Completion streams chat completions from an OpenAI-compatible API.
type Completion struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	user        string
	logger      *zap.Logger
}

// NewCompletion creates a streaming chat completion provider.
func NewCompletion(cfg *CompletionConfig) *Completion {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completion{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		user:        cfg.User,
		logger:      cfg.Logger,
	}
}

// StreamGenerate sends prompt as a single user message and returns the delta stream.
func (c *Completion) StreamGenerate(ctx context.Context, prompt string) (domain.TokenStream, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		User:        c.user,
		Stream:      true,

		// Final frame carries prompt and completion token counts.
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	// temperature is omitempty: 0 would fall back to the provider default.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()
	s, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(metrics.OpComplete, c.model, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(metrics.OpComplete, c.model, "open").Inc()
		return nil, wrapAPIError("completion", err, domain.ErrCompletionProviderError)
	}

	c.logger.Debug("Completion stream opened",
		zap.String("model", c.model),
		zap.Int("max_tokens", c.maxTokens),
		zap.Duration("time_to_open", time.Since(start)),
	)
	return &tokenStream{stream: s, model: c.model, start: start}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completion) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// tokenStream adapts go-openai's stream to domain.TokenStream and domain.UsageReporter.
type tokenStream struct {
	stream *openai.ChatCompletionStream
	model  string
	start  time.Time

	usage    domain.TokenUsage
	hasUsage bool
	finished bool

	closeOnce sync.Once
	closeErr  error
}

var (
	_ domain.TokenStream   = (*tokenStream)(nil)
	_ domain.UsageReporter = (*tokenStream)(nil)
)

// Recv returns the next non-empty content delta, io.EOF at the end.
func (t *tokenStream) Recv() (string, error) {
	for {
		resp, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			t.finish("success")
			return "", io.EOF
		}
		if err != nil {
			metrics.ProviderErrorsTotal.WithLabelValues(metrics.OpComplete, t.model, "stream").Inc()
			t.finish("error")
			return "", wrapAPIError("completion stream", err, domain.ErrCompletionProviderError)
		}
		if resp.Usage != nil {
			t.usage = domain.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
			}
			t.hasUsage = true
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Usage returns the counts from the final usage frame, if one arrived.
func (t *tokenStream) Usage() (domain.TokenUsage, bool) { return t.usage, t.hasUsage }

func (t *tokenStream) finish(status string) {
	if t.finished {
		return
	}
	t.finished = true
	metrics.ProviderRequestsTotal.WithLabelValues(metrics.OpComplete, t.model, status).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(metrics.OpComplete, t.model).Observe(time.Since(t.start).Seconds())
}

// Close releases the HTTP body. Safe to call more than once.
func (t *tokenStream) Close() error {
	t.closeOnce.Do(func() {
		if err := t.stream.Close(); err != nil {
			t.closeErr = fmt.Errorf("close completion stream: %w", err)
		}
	})
	return t.closeErr
}
