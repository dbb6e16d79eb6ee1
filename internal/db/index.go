package db

import (
	"errors"
	"strconv"
)

// StorageHash is the only storage backend used for chunk indexes.
const StorageHash = "HASH"

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP is inner product distance.
	DistanceIP DistanceMetric = "IP"
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
)

// ParseDistance maps a config value (cosine, l2, ip) to a DistanceMetric.
func ParseDistance(s string) (DistanceMetric, error) {
	switch s {
	case "", "cosine", "COSINE":
		return DistanceCosine, nil
	case "l2", "L2":
		return DistanceL2, nil
	case "ip", "IP":
		return DistanceIP, nil
	default:
		return "", errors.New("unknown distance metric: " + s)
	}
}

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldText is a text field.
	IndexFieldText
	// IndexFieldVector is an HNSW vector field.
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	// VECTOR options
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW M parameter: max edges per node (default 16)
	VectorEFConstruct int // HNSW EF_CONSTRUCTION: build-time dynamic list size (default 200)
}

// IndexDefinition is a complete FT index definition used by FT.CREATE ... ON HASH.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	vectors := 0
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true

		if f.Type == IndexFieldVector {
			vectors++
			if f.VectorDim <= 0 {
				return errors.New("vector field requires positive DIM")
			}
		}
	}
	if vectors != 1 {
		return errors.New("exactly one vector field is required")
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
