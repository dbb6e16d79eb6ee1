// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"unicode/utf8"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

const (
	// DefaultChunkSize is the default window length in runes.
	DefaultChunkSize = 1750
	// DefaultOverlap is the default number of runes shared by adjacent chunks.
	DefaultOverlap = 150
)

// Chunker holds validated split parameters.
type Chunker struct {
	size    int
	overlap int
}

// New validates size and overlap and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text with the configured parameters.
func (c *Chunker) Split(text string) []domain.Chunk {
	return split(text, c.size, c.overlap)
}

// Split walks text with a window of size runes, advancing by size-overlap.
// The final chunk is the remainder and always ends at the end of text.
func Split(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return split(text, size, overlap), nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return domain.NewConfigurationError("chunk_size", "must be positive")
	}
	if overlap < 0 {
		return domain.NewConfigurationError("chunk_overlap", "must not be negative")
	}
	if overlap >= size {
		return domain.NewConfigurationError("chunk_overlap", "must be less than chunk_size")
	}
	return nil
}

func split(text string, size, overlap int) []domain.Chunk {
	if text == "" {
		return []domain.Chunk{}
	}

	runes := []rune(text)
	total := len(runes)
	step := size - overlap
	chunks := make([]domain.Chunk, 0, total/step+1)

	for start := 0; ; start += step {
		end := min(start+size, total)
		chunks = append(chunks, domain.Chunk{
			Index:       len(chunks),
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == total {
			break
		}
	}
	return chunks
}

// RuneLen is the unit chunk offsets are measured in.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
