package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// DefaultMaxAPIBatchSize — максимальный размер батча для одного API-запроса.
const DefaultMaxAPIBatchSize = 256

// DefaultConcurrency is the number of sub-batches in flight at once.
const DefaultConcurrency = 4

// Spender is the local interface for token budget enforcement.
// Both calls read the pipeline stage from ctx.
type Spender interface {
	Allow(ctx context.Context) error
	Spend(ctx context.Context, tokens int)
}

// InstrumentedEmbedder wraps Embedder with budget enforcement, sub-batching and logging.
// Transport metrics (requests, duration, errors) are recorded in transport/openai.
// This layer owns per-stage token accounting.
type InstrumentedEmbedder struct {
	inner        domain.Embedder
	provider     string
	model        string
	budget       Spender
	maxBatchSize int
	concurrency  int
	logger       *zap.Logger
}

// Option tunes an InstrumentedEmbedder.
type Option interface {
	apply(*InstrumentedEmbedder)
}

type optionFunc func(*InstrumentedEmbedder)

func (f optionFunc) apply(p *InstrumentedEmbedder) { f(p) }

// WithMaxBatchSize caps the number of texts per provider request.
func WithMaxBatchSize(n int) Option {
	return optionFunc(func(p *InstrumentedEmbedder) {
		if n > 0 {
			p.maxBatchSize = n
		}
	})
}

// WithConcurrency caps the number of sub-batches in flight.
func WithConcurrency(n int) Option {
	return optionFunc(func(p *InstrumentedEmbedder) {
		if n > 0 {
			p.concurrency = n
		}
	})
}

// NewInstrumentedEmbedder wraps an embedder with budget and observability.
// A nil budget disables budget enforcement.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget Spender, logger *zap.Logger, opts ...Option,
) *InstrumentedEmbedder {
	p := &InstrumentedEmbedder{
		inner:        inner,
		provider:     provider,
		model:        model,
		budget:       budget,
		maxBatchSize: DefaultMaxAPIBatchSize,
		concurrency:  DefaultConcurrency,
		logger:       logger,
	}
	for _, o := range opts {
		o.apply(p)
	}
	return p
}

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	// Check budget before making the request
	if p.budget != nil {
		if err := p.budget.Allow(ctx); err != nil {
			p.logger.Error("Budget exceeded",
				zap.String("stage", string(domain.StageFrom(ctx))),
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.spend(ctx, result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("stage", string(domain.StageFrom(ctx))),
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed проверяет бюджет, разбивает на sub-batches, делегирует inner.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if p.budget != nil {
		if err := p.budget.Allow(ctx); err != nil {
			p.logger.Error("Budget exceeded (batch)",
				zap.String("stage", string(domain.StageFrom(ctx))),
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("batch_size", len(texts)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	duration := time.Since(start)
	p.spend(ctx, result.TotalTokens)

	p.logger.Debug("Batch embedding completed",
		zap.String("stage", string(domain.StageFrom(ctx))),
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// embedChunked разбивает тексты на sub-batches по maxBatchSize и отправляет их параллельно.
// Порядок результатов совпадает с порядком texts.
func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) <= p.maxBatchSize {
		res, err := p.embedInner(ctx, texts)
		if err != nil {
			p.logBatchFailure(0, len(texts), err)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}

	n := (len(texts) + p.maxBatchSize - 1) / p.maxBatchSize
	parts := make([]domain.BatchEmbeddingResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range n {
		offset := i * p.maxBatchSize
		end := min(offset+p.maxBatchSize, len(texts))
		chunk := texts[offset:end]

		g.Go(func() error {
			if p.budget != nil && offset > 0 {
				if err := p.budget.Allow(gctx); err != nil {
					return fmt.Errorf("budget check (chunk %d): %w", offset, err)
				}
			}
			res, err := p.embedInner(gctx, chunk)
			if err != nil {
				p.logBatchFailure(offset, len(chunk), err)
				return fmt.Errorf("batch embed: %w", err)
			}
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // wrapped inside the group
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, part := range parts {
		out.Embeddings = append(out.Embeddings, part.Embeddings...)
		out.PromptTokens += part.PromptTokens
		out.TotalTokens += part.TotalTokens
	}
	return out, nil
}

func (p *InstrumentedEmbedder) logBatchFailure(offset, size int, err error) {
	p.logger.Error("Batch embedding request failed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Int("chunk_offset", offset),
		zap.Int("chunk_size", size),
		zap.Error(err),
	)
}

func (p *InstrumentedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedAll(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner: %w", err)
	}
	return res, nil
}

// spend attributes tokens to ctx's stage.
func (p *InstrumentedEmbedder) spend(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	stage := domain.StageFrom(ctx)
	metrics.TokensTotal.WithLabelValues(string(stage), string(domain.TokensEmbedding)).Add(float64(tokens))
	if p.budget != nil {
		p.budget.Spend(ctx, tokens)
	}
}
