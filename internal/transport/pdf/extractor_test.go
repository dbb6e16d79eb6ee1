package pdf

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

func TestExtract_NotAPDF(t *testing.T) {
	data := []byte("plain text, definitely not a pdf")

	_, err := NewExtractor().Extract(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if !errors.Is(err, domain.ErrCollaborator) {
		t.Errorf("expected collaborator error chain, got %v", err)
	}
}

func TestExtract_TruncatedPDF(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\nstartxref\n999999\n%%EOF\n")

	_, err := NewExtractor().Extract(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor().Extract(ctx, bytes.NewReader(nil), 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
