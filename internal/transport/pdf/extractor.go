// Package pdf extracts plain text from uploaded PDF files.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

var _ domain.Extractor = (*Extractor)(nil)

// Extractor reads the text layer of a PDF with ledongthuc/pdf.
type Extractor struct{}

// NewExtractor creates a PDF text extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns the document text with surrounding whitespace trimmed.
// A PDF without a text layer yields domain.ErrEmptyDocument.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}

	// ledongthuc/pdf паникует на битых xref/stream.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v: %w", rec, domain.ErrExtraction)
		}
	}()

	rdr, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %v: %w", err, domain.ErrExtraction)
	}

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %v: %w", err, domain.ErrExtraction)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %v: %w", err, domain.ErrExtraction)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}
