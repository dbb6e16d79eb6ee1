package chunk

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ragstream/internal/db"
	"github.com/kailas-cloud/ragstream/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetAtomicFn  func(ctx context.Context, items []db.HashSetItem) (int, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) HSetAtomic(ctx context.Context, items []db.HashSetItem) (int, error) {
	if m.hsetAtomicFn != nil {
		return m.hsetAtomicFn(ctx, items)
	}
	return len(items), nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func testConfig() Config {
	return Config{
		IndexName:   "ragstream-chunks",
		KeyPrefix:   "ragstream:chunk:",
		Dimensions:  4,
		Distance:    db.DistanceCosine,
		HNSWM:       16,
		EFConstruct: 200,
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testConfig()), ms
}

func testChunks(n int) []domain.StoredChunk {
	out := make([]domain.StoredChunk, n)
	for i := range out {
		out[i] = domain.StoredChunk{
			Chunk:      domain.Chunk{Index: i, Text: "chunk text", StartOffset: i * 9, EndOffset: i*9 + 10},
			DocumentID: "doc-1",
			SourceURL:  "manual.pdf",
			Vector:     []float32{0.1, 0.2, 0.3, 0.4},
		}
	}
	return out
}
