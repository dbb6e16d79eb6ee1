package ingest

import (
	"context"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// Splitter cuts document text into overlapping chunks.
type Splitter interface {
	Split(text string) []domain.Chunk
}

// ChunkWriter persists one document's chunks as a single write batch.
type ChunkWriter interface {
	SaveBatch(ctx context.Context, chunks []domain.StoredChunk) (written int, err error)
}
