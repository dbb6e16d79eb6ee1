package query

import (
	"context"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
