// Package chunk stores embedded chunks as hashes behind an HNSW FT index.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ragstream/internal/db"
	"github.com/kailas-cloud/ragstream/internal/domain"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HSetAtomic(ctx context.Context, items []db.HashSetItem) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Config describes the chunk index.
type Config struct {
	IndexName   string
	KeyPrefix   string // e.g. "ragstream:chunk:"
	Dimensions  int
	Distance    db.DistanceMetric
	HNSWM       int
	EFConstruct int
}

// Repo implements ingest.ChunkWriter and domain.Retriever.
type Repo struct {
	store store
	cfg   Config
}

var _ domain.Retriever = (*Repo)(nil)

// New creates a chunk repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndex creates the FT index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w: %w", r.cfg.IndexName, domain.ErrStorage, err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w: %w", r.cfg.IndexName, domain.ErrStorage, err)
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.cfg.IndexName).
		Prefix(r.cfg.KeyPrefix).
		Tag(fieldDocumentID).
		Numeric(fieldChunkIndex).
		Text(fieldContent).
		VectorHNSW(fieldVector, r.cfg.Dimensions, r.cfg.Distance, r.cfg.HNSWM, r.cfg.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return def, nil
}

// SaveBatch writes every chunk in one transaction.
// When the store applies only part of the batch, it returns *domain.PartialWriteError.
func (r *Repo) SaveBatch(ctx context.Context, chunks []domain.StoredChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Vector) != r.cfg.Dimensions {
			return 0, fmt.Errorf("chunk %d: %w: got %d, want %d",
				c.Index, domain.ErrVectorDimMismatch, len(c.Vector), r.cfg.Dimensions)
		}
		items[i] = db.HashSetItem{Key: r.key(c.DocumentID, c.Index), Fields: buildHashFields(c)}
	}

	written, err := r.store.HSetAtomic(ctx, items)
	if err == nil {
		return written, nil
	}
	storageErr := fmt.Errorf("%w: %w", domain.ErrStorage, err)
	if written > 0 {
		return written, &domain.PartialWriteError{Written: written, Total: len(items), Err: storageErr}
	}
	return 0, fmt.Errorf("save %d chunks: %w", len(items), storageErr)
}

// Retrieve returns the k chunks nearest to vector, best first.
func (r *Repo) Retrieve(
	ctx context.Context, vector []float32, k int, filter domain.Filter,
) ([]domain.RetrievedContext, error) {
	q := &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	}
	if !filter.IsEmpty() {
		q.Filters = []db.TagMatch{{Field: fieldDocumentID, Value: filter.DocumentID}}
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", domain.ErrStorage, err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]domain.RetrievedContext, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, domain.RetrievedContext{
			StoredChunk: parseHashFields(e.Fields),
			Score:       e.Score,
		})
	}
	return out, nil
}

// key puts the document id in a hash tag so a document's chunks share one slot,
// which MULTI/EXEC requires in cluster mode.
func (r *Repo) key(documentID string, index int) string {
	return r.cfg.KeyPrefix + "{" + documentID + "}:" + strconv.Itoa(index)
}
