package domain

import (
	"context"
	"io"
)

// Retriever returns the k stored chunks most similar to vector, best first.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, k int, filter Filter) ([]RetrievedContext, error)
}

// TokenStream yields text deltas until io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Completion opens a streaming generation for prompt.
type Completion interface {
	StreamGenerate(ctx context.Context, prompt string) (TokenStream, error)
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// EventKind discriminates GenerationEvent.
type EventKind string

const (
	// EventChunk carries a generated text delta.
	EventChunk EventKind = "chunk"
	// EventDocument carries one retrieved context item.
	EventDocument EventKind = "document"
)

// GenerationEvent is one logical item of a query response.
type GenerationEvent struct {
	Kind     EventKind
	Text     string
	Document RetrievedContext
}
