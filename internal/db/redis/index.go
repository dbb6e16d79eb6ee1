package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/ragstream/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists checks index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx == nil {
		return nil, errors.New("index definition is required")
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", db.StorageHash}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		args = append(args, buildFieldArgs(&idx.Fields[i])...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) []string {
	switch f.Type {
	case db.IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}
	case db.IndexFieldText:
		return []string{f.Name, "TEXT"}
	case db.IndexFieldTag:
		return []string{f.Name, "TAG"}
	default:
		return append([]string{f.Name}, buildVectorFieldArgs(f)...)
	}
}

func buildVectorFieldArgs(f *db.IndexField) []string {
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if f.VectorEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	result = append(result, attrs...)
	return result
}
