package chunk

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// Hash field names of a stored chunk.
const (
	fieldContent     = "content"
	fieldDocumentID  = "document_id"
	fieldSourceURL   = "source_url"
	fieldChunkIndex  = "chunk_index"
	fieldStartOffset = "start_offset"
	fieldEndOffset   = "end_offset"
	fieldVector      = "vector"
)

// returnFields are fetched by KNN search; the vector itself is never returned.
var returnFields = []string{
	fieldContent, fieldDocumentID, fieldSourceURL,
	fieldChunkIndex, fieldStartOffset, fieldEndOffset,
}

// buildHashFields converts a StoredChunk into a flat map[string]string for HSET.
func buildHashFields(c *domain.StoredChunk) map[string]string {
	return map[string]string{
		fieldContent:     c.Text,
		fieldDocumentID:  c.DocumentID,
		fieldSourceURL:   c.SourceURL,
		fieldChunkIndex:  strconv.Itoa(c.Index),
		fieldStartOffset: strconv.Itoa(c.StartOffset),
		fieldEndOffset:   strconv.Itoa(c.EndOffset),
		fieldVector:      vectorToBytes(c.Vector),
	}
}

// parseHashFields converts FT.SEARCH return fields back into a StoredChunk.
// Malformed numerics decode as zero.
func parseHashFields(m map[string]string) domain.StoredChunk {
	atoi := func(k string) int {
		n, _ := strconv.Atoi(m[k])
		return n
	}
	return domain.StoredChunk{
		Chunk: domain.Chunk{
			Index:       atoi(fieldChunkIndex),
			Text:        m[fieldContent],
			StartOffset: atoi(fieldStartOffset),
			EndOffset:   atoi(fieldEndOffset),
		},
		DocumentID: m[fieldDocumentID],
		SourceURL:  m[fieldSourceURL],
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
