package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// Result describes a finished (or partially finished) ingestion.
type Result struct {
	DocumentID  string
	ChunkCount  int
	StoredCount int
}

// Service chunks, embeds and stores documents.
type Service struct {
	splitter Splitter
	embedder domain.Embedder
	writer   ChunkWriter
	newID    func() string
	logger   *zap.Logger
}

// New creates an ingestion service.
func New(splitter Splitter, embedder domain.Embedder, writer ChunkWriter, logger *zap.Logger) *Service {
	return &Service{
		splitter: splitter,
		embedder: embedder,
		writer:   writer,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Ingest stores doc as chunk/vector pairs in one write batch.
// doc.ID is assigned when empty. On a partial write the returned Result carries
// StoredCount alongside a *domain.PartialWriteError.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (Result, error) {
	if doc.ID == "" {
		doc.ID = s.newID()
	}
	res := Result{DocumentID: doc.ID}
	ctx = domain.WithStage(ctx, domain.StageIngest)

	chunks := s.splitter.Split(doc.RawText)
	if len(chunks) == 0 {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return res, domain.ErrEmptyDocument
	}
	res.ChunkCount = len(chunks)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	start := time.Now()
	emb, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	stored, err := domain.Pair(doc, chunks, emb.Embeddings)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("pair chunks: %w", err)
	}

	written, err := s.writer.SaveBatch(ctx, stored)
	res.StoredCount = written
	metrics.IngestChunksTotal.Add(float64(written))
	if err != nil {
		status := "error"
		if errors.Is(err, domain.ErrPartialWrite) {
			status = "partial"
		}
		metrics.IngestDocumentsTotal.WithLabelValues(status).Inc()
		return res, fmt.Errorf("save chunks: %w", err)
	}

	metrics.IngestDocumentsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("source", doc.SourceURL),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedding_tokens", emb.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}
