package domain

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the default configuration for text-embedding-ada-002.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-ada-002",
		Dimensions:     1536,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}

// GenerationConfig holds completion model parameters.
type GenerationConfig struct {
	Model               string
	MaxTokens           int
	Temperature         float32
	ContextWindowTokens int
}

// DefaultGenerationConfig returns the defaults used for gpt-4.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Model:               "gpt-4",
		MaxTokens:           1000,
		Temperature:         0,
		ContextWindowTokens: 8192,
	}
}

// PromptBudget is the number of prompt tokens left after reserving the completion.
func (c GenerationConfig) PromptBudget() int {
	return c.ContextWindowTokens - c.MaxTokens
}
