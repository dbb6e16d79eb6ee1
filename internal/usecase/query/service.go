package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// DefaultTopK is the number of context items retrieved per question.
const DefaultTopK = 4

// ErrClosed is returned by Recv after Close.
var ErrClosed = errors.New("query stream closed")

// Request is a single question.
type Request struct {
	Question     string
	UseRetrieval bool
	DocumentID   string
}

// Config holds query tuning.
type Config struct {
	TopK         int
	PromptBudget int
}

// Service answers questions with optional retrieval-augmented context.
type Service struct {
	embedder   Embedder
	retriever  domain.Retriever
	completion domain.Completion
	topK       int
	budget     int
	logger     *zap.Logger
}

// New creates a query service. Zero config values take the defaults.
func New(
	embedder Embedder, retriever domain.Retriever, completion domain.Completion,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.PromptBudget <= 0 {
		cfg.PromptBudget = domain.DefaultGenerationConfig().PromptBudget()
	}
	return &Service{
		embedder:   embedder,
		retriever:  retriever,
		completion: completion,
		topK:       cfg.TopK,
		budget:     cfg.PromptBudget,
		logger:     logger,
	}
}

// Query builds the prompt and opens the completion stream.
// Every failure before the first token is returned here, so callers can still
// answer with a regular error response.
func (s *Service) Query(ctx context.Context, req Request) (*Stream, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question is required: %w", domain.ErrInputValidation)
	}
	ctx = domain.WithStage(ctx, domain.StageQuery)

	var (
		prompt string
		docs   []domain.RetrievedContext
		err    error
	)
	if req.UseRetrieval {
		prompt, docs, err = s.retrievalPrompt(ctx, req)
	} else {
		prompt, err = PlainPrompt(req.Question, s.budget)
	}
	if err != nil {
		return nil, err
	}

	tokens, err := s.completion.StreamGenerate(ctx, prompt)
	if err != nil {
		metrics.GenerationErrorsTotal.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("open completion: %w", err)
	}

	s.logger.Debug("Completion started",
		zap.Bool("rag", req.UseRetrieval),
		zap.Int("context_items", len(docs)),
		zap.Int("prompt_tokens_estimate", EstimateTokens(prompt)),
	)

	return &Stream{tokens: tokens, docs: docs, start: time.Now()}, nil
}

func (s *Service) retrievalPrompt(ctx context.Context, req Request) (string, []domain.RetrievedContext, error) {
	emb, err := s.embedder.Embed(ctx, req.Question)
	if err != nil {
		return "", nil, fmt.Errorf("embed question: %w", err)
	}

	retrieved, err := s.retriever.Retrieve(ctx, emb.Embedding, s.topK, domain.Filter{DocumentID: req.DocumentID})
	if err != nil {
		return "", nil, fmt.Errorf("retrieve context: %w", err)
	}

	prompt, used, err := ContextPrompt(req.Question, retrieved, s.budget)
	if err != nil {
		return "", nil, err
	}
	if dropped := len(retrieved) - len(used); dropped > 0 {
		s.logger.Info("Context truncated to prompt budget",
			zap.Int("retrieved", len(retrieved)),
			zap.Int("dropped", dropped),
			zap.Int("budget", s.budget),
		)
	}
	return prompt, used, nil
}

// Stream yields answer chunks in arrival order, then the context documents in rank order.
// It is pull-based: a token is requested from the provider only inside Recv.
type Stream struct {
	tokens     domain.TokenStream
	docs       []domain.RetrievedContext
	next       int
	tokensDone bool
	err        error
	closed     bool
	start      time.Time
}

// Recv returns the next event, or io.EOF after the last document.
// A provider failure after the stream started is returned as *domain.GenerationError.
func (s *Stream) Recv() (domain.GenerationEvent, error) {
	if s.closed {
		return domain.GenerationEvent{}, ErrClosed
	}
	if s.err != nil {
		return domain.GenerationEvent{}, s.err
	}

	for !s.tokensDone {
		delta, err := s.tokens.Recv()
		switch {
		case err == nil:
			if delta == "" {
				continue
			}
			metrics.GenerationTokensStreamed.Inc()
			return domain.GenerationEvent{Kind: domain.EventChunk, Text: delta}, nil
		case errors.Is(err, io.EOF):
			s.tokensDone = true
			metrics.GenerationDuration.Observe(time.Since(s.start).Seconds())
		default:
			metrics.GenerationErrorsTotal.WithLabelValues("stream").Inc()
			s.err = &domain.GenerationError{Err: err}
			return domain.GenerationEvent{}, s.err
		}
	}

	if s.next < len(s.docs) {
		doc := s.docs[s.next]
		s.next++
		return domain.GenerationEvent{Kind: domain.EventDocument, Document: doc}, nil
	}
	return domain.GenerationEvent{}, io.EOF
}

// Documents returns the context items this answer was conditioned on.
func (s *Stream) Documents() []domain.RetrievedContext { return s.docs }

// Close releases the completion stream.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tokens.Close(); err != nil {
		return fmt.Errorf("close token stream: %w", err)
	}
	return nil
}
