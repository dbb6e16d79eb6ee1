package budget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// Spender is the ledger surface used by the metering decorators.
type Spender interface {
	Allow(ctx context.Context) error
	Spend(ctx context.Context, tokens int)
}

// MeteredCompletion checks the budget before a completion opens and spends the
// provider-reported usage once the stream ends.
type MeteredCompletion struct {
	inner  domain.Completion
	ledger Spender
	logger *zap.Logger
}

var _ domain.Completion = (*MeteredCompletion)(nil)

// NewMeteredCompletion wraps inner. A nil ledger only records token metrics.
func NewMeteredCompletion(inner domain.Completion, ledger Spender, logger *zap.Logger) *MeteredCompletion {
	return &MeteredCompletion{inner: inner, ledger: ledger, logger: logger}
}

// StreamGenerate refuses to open the stream when the budget rejects ctx's stage.
func (c *MeteredCompletion) StreamGenerate(ctx context.Context, prompt string) (domain.TokenStream, error) {
	if c.ledger != nil {
		if err := c.ledger.Allow(ctx); err != nil {
			return nil, fmt.Errorf("completion budget: %w", err)
		}
	}
	ts, err := c.inner.StreamGenerate(ctx, prompt)
	if err != nil {
		return nil, err //nolint:wrapcheck // transport already wraps provider errors
	}
	return &meteredStream{TokenStream: ts, ctx: ctx, owner: c}, nil
}

type meteredStream struct {
	domain.TokenStream
	ctx   context.Context //nolint:containedctx // stage travels with the stream until usage is known
	owner *MeteredCompletion
	once  sync.Once
}

func (s *meteredStream) Recv() (string, error) {
	delta, err := s.TokenStream.Recv()
	if errors.Is(err, io.EOF) {
		s.settle()
	}
	return delta, err //nolint:wrapcheck // io.EOF must pass through unwrapped
}

func (s *meteredStream) Close() error {
	s.settle()
	return s.TokenStream.Close() //nolint:wrapcheck // delegating
}

// settle spends the reported usage at most once. Streams aborted before the
// provider's final usage frame spend nothing.
func (s *meteredStream) settle() {
	s.once.Do(func() {
		ur, ok := s.TokenStream.(domain.UsageReporter)
		if !ok {
			return
		}
		usage, ok := ur.Usage()
		if !ok {
			s.owner.logger.Debug("Completion ended without usage report",
				zap.String("stage", string(domain.StageFrom(s.ctx))))
			return
		}
		stage := domain.StageFrom(s.ctx)
		metrics.TokensTotal.WithLabelValues(string(stage), string(domain.TokensCompletion)).Add(float64(usage.Total()))
		if s.owner.ledger != nil {
			s.owner.ledger.Spend(s.ctx, usage.Total())
		}
	})
}
