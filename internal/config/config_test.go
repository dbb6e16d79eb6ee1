package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/ragstream/internal/chunker"
	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/usecase/embedding"
	"github.com/kailas-cloud/ragstream/internal/usecase/query"
)

func validConfig() Config {
	cfg := Config{
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Vector:   VectorConfig{Index: "ragstream-chunks"},
		OpenAI:   OpenAIConfig{APIKey: "sk-test"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func intPtr(v int) *int { return &v }

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		setting string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"missing index", func(c *Config) { c.Vector.Index = " " }, "vector.index"},
		{"unknown distance", func(c *Config) { c.Vector.Distance = "hamming" }, "vector.distance"},
		{"missing api key", func(c *Config) { c.OpenAI.APIKey = "" }, "openai.api_key"},
		{"window too small", func(c *Config) { c.OpenAI.ContextWindowTokens = 1000 }, "openai.context_window_tokens"},
		{"temperature", func(c *Config) { c.OpenAI.Temperature = 3 }, "openai.temperature"},
		{"budget action", func(c *Config) { c.OpenAI.Budget.Action = "invalid_action" }, "openai.budget.action"},
		{"overlap >= size", func(c *Config) { c.Ingest.ChunkOverlap = intPtr(1750) }, "ingest.chunk_overlap"},
		{"negative overlap", func(c *Config) { c.Ingest.ChunkOverlap = intPtr(-1) }, "ingest.chunk_overlap"},
		{"framing", func(c *Config) { c.Stream.Framing = "sse" }, "stream.framing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			var ce *domain.ConfigurationError
			if !errors.As(err, &ce) || ce.Setting != tt.setting {
				t.Errorf("setting = %+v, want %q", ce, tt.setting)
			}
		})
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.OpenAI.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: action}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxUploadBytes != 5<<20 {
		t.Errorf("expected MaxUploadBytes=5MiB, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Vector.Dimensions != 1536 || cfg.Vector.Distance != "cosine" {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Vector.KeyPrefix != "ragstream:" {
		t.Errorf("expected KeyPrefix='ragstream:', got %q", cfg.Vector.KeyPrefix)
	}
	if cfg.OpenAI.ChatModel != "gpt-4" || cfg.OpenAI.MaxTokens != 1000 || cfg.OpenAI.ContextWindowTokens != 8192 {
		t.Errorf("openai = %+v", cfg.OpenAI)
	}
	if cfg.OpenAI.EmbeddingModel != "text-embedding-ada-002" {
		t.Errorf("embedding model = %q", cfg.OpenAI.EmbeddingModel)
	}
	if cfg.Ingest.ChunkSize != 1750 || cfg.Ingest.Overlap() != 150 {
		t.Errorf("ingest = %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	}
	if cfg.Query.TopK != 4 {
		t.Errorf("expected TopK=4, got %d", cfg.Query.TopK)
	}
	if cfg.Stream.Framing != "jsonl" {
		t.Errorf("expected framing jsonl, got %q", cfg.Stream.Framing)
	}
	if got := cfg.OpenAI.Generation().PromptBudget(); got != 7192 {
		t.Errorf("prompt budget = %d, want 7192", got)
	}
}

func TestApplyDefaults_MatchPackageDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Ingest.ChunkSize != chunker.DefaultChunkSize || cfg.Ingest.Overlap() != chunker.DefaultOverlap {
		t.Errorf("ingest = %d/%d, want chunker defaults", cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	}
	if cfg.Query.TopK != query.DefaultTopK {
		t.Errorf("TopK = %d, want query.DefaultTopK", cfg.Query.TopK)
	}
	if cfg.OpenAI.EmbeddingBatchSize != embedding.DefaultMaxAPIBatchSize ||
		cfg.OpenAI.EmbeddingConcurrency != embedding.DefaultConcurrency {
		t.Errorf("embedding batching = %d/%d", cfg.OpenAI.EmbeddingBatchSize, cfg.OpenAI.EmbeddingConcurrency)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 9000, ReadTimeoutSec: 5},
		Vector: VectorConfig{KeyPrefix: "custom:", HNSWM: 32},
		Ingest: IngestConfig{ChunkSize: 500, ChunkOverlap: intPtr(0)},
		Query:  QueryConfig{TopK: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.Vector.KeyPrefix != "custom:" || cfg.Vector.HNSWM != 32 {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.Overlap() != 0 {
		t.Errorf("explicit zero overlap replaced: %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	}
	if cfg.Query.TopK != 8 {
		t.Errorf("TopK = %d", cfg.Query.TopK)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("RAGSTREAM_TEST_KEY", "sk-from-env")

	cfg, err := Parse([]byte(`
database:
  addrs: ["${RAGSTREAM_TEST_ADDR:-localhost:6379}"]
vector:
  index: chunks
openai:
  api_key: ${RAGSTREAM_TEST_KEY}
stream:
  framing: control
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
	if len(cfg.Database.Addrs) != 1 || cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("addrs = %v", cfg.Database.Addrs)
	}
	if cfg.Stream.Framing != "control" {
		t.Errorf("framing = %q", cfg.Stream.Framing)
	}
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := Parse([]byte("database:\n  addrs: [\"localhost:6379\"]\nvector:\n  index: chunks\n"))
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) || ce.Setting != "openai.api_key" {
		t.Fatalf("err = %v, want openai.api_key configuration error", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("RAGSTREAM_DOTENV_KEY", "")
	_ = os.Unsetenv("RAGSTREAM_DOTENV_KEY")

	if err := os.WriteFile(".env", []byte("RAGSTREAM_DOTENV_KEY=sk-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir("config", 0o750); err != nil {
		t.Fatal(err)
	}
	yml := "database:\n  addrs: [\"localhost:6379\"]\nvector:\n  index: chunks\nopenai:\n  api_key: ${RAGSTREAM_DOTENV_KEY}\n"
	if err := os.WriteFile(filepath.Join("config", "test.yaml"), []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-dotenv" {
		t.Errorf("api key = %q, want value from .env", cfg.OpenAI.APIKey)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGSTREAM_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"${RAGSTREAM_SET}", "value"},
		{"${RAGSTREAM_SET:-other}", "value"},
		{"${RAGSTREAM_UNSET_X:-fallback}", "fallback"},
		{"${RAGSTREAM_UNSET_X}", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := string(expandEnvVars([]byte(tt.in))); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
