package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("ragstream-chunks").
		Prefix("ragstream:chunk:").
		Tag("document_id").
		Numeric("chunk_index").
		Text("content").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if idx.Fields[0].Name != "document_id" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want document_id TAG", idx.Fields[0])
	}
	f := idx.Fields[3]
	if f.Type != IndexFieldVector || f.VectorDim != 1536 || f.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", f)
	}
	if f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("HNSW params = %d/%d, want 16/200", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").VectorHNSW("v", 4, DistanceCosine, 0, 0), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"vector without dim", NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 0, 0), "positive DIM"},
		{"no vector", NewIndex("idx").Tag("x"), "exactly one vector field"},
		{"two vectors", NewIndex("idx").VectorHNSW("a", 2, DistanceL2, 0, 0).VectorHNSW("b", 2, DistanceL2, 0, 0), "exactly one vector field"},
		{"invalid characters", NewIndex("idx with spaces").VectorHNSW("v", 4, DistanceCosine, 0, 0), "invalid characters"},
		{"duplicate fields", NewIndex("idx").Tag("f").Numeric("f"), "duplicate field name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("my-idx").
		Prefix("doc:").
		Tag("cat").
		VectorHNSW("vec", 512, DistanceCosine, 0, 0).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "FT.CREATE my-idx ON HASH PREFIX doc: SCHEMA cat TAG vec VECTOR HNSW"
	if s := idx.String(); s != want {
		t.Errorf("got %q, want %q", s, want)
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		in   string
		want DistanceMetric
	}{
		{"", DistanceCosine},
		{"cosine", DistanceCosine},
		{"L2", DistanceL2},
		{"ip", DistanceIP},
	}
	for _, tt := range tests {
		got, err := ParseDistance(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDistance(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := ParseDistance("hamming"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
