package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestBatchFallback_Success(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 15 {
		t.Errorf("expected TotalTokens=15, got %d", res.TotalTokens)
	}
}

func TestBatchFallback_Error(t *testing.T) {
	innerErr := errors.New("fail")
	inner := &stubEmbedder{err: innerErr}
	_, err := BatchFallback(context.Background(), inner, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{
		Embeddings: [][]float32{{0.1}, {0.2}},
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if inner.calls != 0 {
		t.Errorf("expected no single Embed calls, got %d", inner.calls)
	}
	if len(inner.batchTexts) != 2 {
		t.Errorf("expected one batch of 2 texts, got %v", inner.batchTexts)
	}
}

func TestEmbedAll_FallbackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 3}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 Embed calls, got %d", inner.calls)
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected TotalTokens=6, got %d", res.TotalTokens)
	}
}

func TestPair(t *testing.T) {
	doc := Document{ID: "doc-1", SourceURL: "a.pdf"}
	chunks := []Chunk{{Index: 0, Text: "ab"}, {Index: 1, Text: "cd"}}

	t.Run("positional", func(t *testing.T) {
		got, err := Pair(doc, chunks, [][]float32{{1}, {2}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[1].Text != "cd" || got[1].Vector[0] != 2 || got[1].DocumentID != "doc-1" {
			t.Errorf("unexpected pairing: %+v", got[1])
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Pair(doc, chunks, [][]float32{{1}})
		var pe *PairingError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PairingError, got %v", err)
		}
		if pe.Chunks != 2 || pe.Embeddings != 1 {
			t.Errorf("unexpected counts: %+v", pe)
		}
		if !errors.Is(err, ErrPairing) {
			t.Error("expected errors.Is ErrPairing")
		}
	})
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"embedding is collaborator", ErrEmbeddingProviderError, ErrCollaborator},
		{"completion is collaborator", ErrCompletionProviderError, ErrCollaborator},
		{"storage is collaborator", ErrStorage, ErrCollaborator},
		{"prompt too large is input", ErrPromptTooLarge, ErrInputValidation},
		{"empty document is input", ErrEmptyDocument, ErrInputValidation},
		{"configuration", NewConfigurationError("openai.api_key", ""), ErrConfiguration},
		{"partial write", &PartialWriteError{Written: 1, Total: 3, Err: ErrStorage}, ErrPartialWrite},
		{"partial write keeps cause", &PartialWriteError{Written: 1, Total: 3, Err: ErrStorage}, ErrCollaborator},
		{"generation", &GenerationError{Err: ErrCompletionProviderError}, ErrGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}
