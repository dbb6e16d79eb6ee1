package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces
type Store interface {
	Pinger
	HashWriter
	KVStore
	Counter
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for a batched HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashWriter writes hashes as one transaction.
type HashWriter interface {
	// HSetAtomic writes every item inside MULTI/EXEC and returns how many
	// items were stored. A non-nil error with written < len(items) is a partial write.
	HSetAtomic(ctx context.Context, items []HashSetItem) (written int, err error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counter provides integer counters that expire with their window.
type Counter interface {
	// IncrByWithTTL adds val to key and returns the new value. ttl is set only
	// when the key has no expiry yet, so repeated increments never extend it.
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
	// GetInts reads integer counters; absent keys read as zero.
	GetInts(ctx context.Context, keys ...string) ([]int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
