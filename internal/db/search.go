package db

// TagMatch is an exact TAG pre-filter condition.
type TagMatch struct {
	Field string
	Value string
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filters      []TagMatch
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search, best first.
type SearchEntry struct {
	Key    string
	Score  float64 // similarity in [0,1]
	Fields map[string]string
}
