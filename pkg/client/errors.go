package client

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragstream/pkg/stream"
)

var (
	// ErrFileTooLarge is returned by Upload before anything is sent.
	ErrFileTooLarge = errors.New("file exceeds upload limit")
	// ErrTruncated marks an answer stream that ended early.
	ErrTruncated = stream.ErrTruncated
)

// APIError is a non-200 response from the server.
type APIError struct {
	StatusCode  int
	Message     string
	StoredCount int // partial ingestion only
	ChunkCount  int // partial ingestion only
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ragstream: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("ragstream: HTTP %d: %s", e.StatusCode, e.Message)
}

// Partial reports whether the server stored only part of an upload.
func (e *APIError) Partial() bool { return e.StoredCount > 0 && e.StoredCount < e.ChunkCount }
