package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	logger     *zap.Logger
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		logger:     cfg.Logger,
	}
}

// Embed vectorizes one text (a question) as a batch of one.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts (document chunks) in a single request.
// Vectors are returned in input order regardless of the response order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
		Dimensions:     e.dimensions,
	}
	model := string(e.model)

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)
	metrics.ProviderRequestDuration.WithLabelValues(metrics.OpEmbed, model).Observe(duration.Seconds())

	if err != nil {
		e.fail(model, "api_error")
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		e.fail(model, "count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding response: %w",
			&domain.PairingError{Chunks: len(texts), Embeddings: len(resp.Data)})
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			e.fail(model, "bad_index")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding response index %d of %d: %w",
				d.Index, len(texts), domain.ErrEmbeddingProviderError)
		}
		embeddings[d.Index] = d.Embedding
	}
	metrics.ProviderRequestsTotal.WithLabelValues(metrics.OpEmbed, model, "success").Inc()

	e.logger.Debug("Embedding response",
		zap.String("model", model),
		zap.Int("inputs", len(texts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

func (e *Embedder) fail(model, cause string) {
	metrics.ProviderRequestsTotal.WithLabelValues(metrics.OpEmbed, model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(metrics.OpEmbed, model, cause).Inc()
}

// HealthCheck verifies API availability via ListModels, which spends no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	return wrapAPIError("embedding", err, domain.ErrEmbeddingProviderError)
}

func wrapAPIError(kind string, err, wrap error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %w", kind, errors.Join(err, wrap))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("%s API error %d: %s: %w",
				kind, reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("%s API error %d: %s: %w",
			kind, reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			kind, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %w", kind, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (OpenAI-compatible gateways).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
