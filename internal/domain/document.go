package domain

// Document is an extracted source document, immutable for the duration of one ingestion.
type Document struct {
	ID        string
	SourceURL string
	RawText   string
}

// Chunk is a contiguous window of a document's text.
// StartOffset and EndOffset are rune offsets into Document.RawText, end exclusive.
type Chunk struct {
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
}

// StoredChunk is the unit persisted to the vector store.
type StoredChunk struct {
	Chunk
	DocumentID string
	SourceURL  string
	Vector     []float32 // not exposed to clients
}

// RetrievedContext is a stored chunk returned by similarity search.
type RetrievedContext struct {
	StoredChunk
	Score float64
}

// Filter narrows retrieval. Zero value means no filtering.
type Filter struct {
	DocumentID string
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool { return f.DocumentID == "" }

// Pair joins chunks and vectors by position.
func Pair(doc Document, chunks []Chunk, vectors [][]float32) ([]StoredChunk, error) {
	if len(chunks) != len(vectors) {
		return nil, &PairingError{Chunks: len(chunks), Embeddings: len(vectors)}
	}
	out := make([]StoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = StoredChunk{
			Chunk:      c,
			DocumentID: doc.ID,
			SourceURL:  doc.SourceURL,
			Vector:     vectors[i],
		}
	}
	return out, nil
}
