package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragstream/internal/chunker"
	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/usecase/embedding"
	"github.com/kailas-cloud/ragstream/internal/usecase/query"
)

// Config holds the ragstream server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Vector   VectorConfig   `yaml:"vector"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Query    QueryConfig    `yaml:"query"`
	Stream   StreamConfig   `yaml:"stream"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"` // /query clears it per stream
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Standalone       bool     `yaml:"standalone"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// VectorConfig describes the chunk index.
type VectorConfig struct {
	Index           string `yaml:"index"`
	KeyPrefix       string `yaml:"key_prefix"`
	Dimensions      int    `yaml:"dimensions"`
	Distance        string `yaml:"distance"` // cosine, l2, ip
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// BudgetConfig holds the provider token budget shared by embeddings and answers.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// OpenAIConfig holds embedding and chat completion settings.
type OpenAIConfig struct {
	APIKey               string       `yaml:"api_key"`
	BaseURL              string       `yaml:"base_url"`
	User                 string       `yaml:"user"`
	EmbeddingModel       string       `yaml:"embedding_model"`
	EmbeddingBatchSize   int          `yaml:"embedding_batch_size"`
	EmbeddingConcurrency int          `yaml:"embedding_concurrency"`
	CacheTTLHours        int          `yaml:"cache_ttl_hours"` // 0 disables the embedding cache
	ChatModel            string       `yaml:"chat_model"`
	MaxTokens            int          `yaml:"max_tokens"`
	Temperature          float32      `yaml:"temperature"`
	ContextWindowTokens  int          `yaml:"context_window_tokens"`
	Budget               BudgetConfig `yaml:"budget"`
}

// Generation returns the completion parameters.
func (o OpenAIConfig) Generation() domain.GenerationConfig {
	return domain.GenerationConfig{
		Model:               o.ChatModel,
		MaxTokens:           o.MaxTokens,
		Temperature:         o.Temperature,
		ContextWindowTokens: o.ContextWindowTokens,
	}
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"` // nil = default, 0 is a valid overlap
}

// Overlap returns the configured overlap, 0 when unset.
func (i IngestConfig) Overlap() int {
	if i.ChunkOverlap == nil {
		return 0
	}
	return *i.ChunkOverlap
}

// QueryConfig holds retrieval settings.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// StreamConfig selects the response framing.
type StreamConfig struct {
	Framing string `yaml:"framing"` // jsonl (default), control
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first; real environment variables win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 5 << 20
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	vec := domain.DefaultVectorConfig()
	if c.Vector.KeyPrefix == "" {
		c.Vector.KeyPrefix = "ragstream:"
	}
	if c.Vector.Dimensions <= 0 {
		c.Vector.Dimensions = vec.Dimensions
	}
	if c.Vector.Distance == "" {
		c.Vector.Distance = vec.DistanceMetric
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}

	gen := domain.DefaultGenerationConfig()
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = vec.Model
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = gen.Model
	}
	if c.OpenAI.MaxTokens <= 0 {
		c.OpenAI.MaxTokens = gen.MaxTokens
	}
	if c.OpenAI.ContextWindowTokens <= 0 {
		c.OpenAI.ContextWindowTokens = gen.ContextWindowTokens
	}
	if c.OpenAI.EmbeddingBatchSize <= 0 {
		c.OpenAI.EmbeddingBatchSize = embedding.DefaultMaxAPIBatchSize
	}
	if c.OpenAI.EmbeddingConcurrency <= 0 {
		c.OpenAI.EmbeddingConcurrency = embedding.DefaultConcurrency
	}

	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = chunker.DefaultChunkSize
	}
	if c.Ingest.ChunkOverlap == nil {
		overlap := chunker.DefaultOverlap
		c.Ingest.ChunkOverlap = &overlap
	}
	if c.Query.TopK <= 0 {
		c.Query.TopK = query.DefaultTopK
	}
	if c.Stream.Framing == "" {
		c.Stream.Framing = "jsonl"
	}
}

// Validate checks the configuration for correctness.
// Every failure is a *domain.ConfigurationError naming the setting.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return domain.NewConfigurationError("http.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if len(c.Database.Addrs) == 0 {
		return domain.NewConfigurationError("database.addrs", "")
	}
	if strings.TrimSpace(c.Vector.Index) == "" {
		return domain.NewConfigurationError("vector.index", "")
	}
	switch strings.ToLower(c.Vector.Distance) {
	case "cosine", "l2", "ip":
	default:
		return domain.NewConfigurationError("vector.distance",
			fmt.Sprintf("must be cosine, l2 or ip, got %q", c.Vector.Distance))
	}
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return domain.NewConfigurationError("openai.api_key", "")
	}
	if c.OpenAI.ContextWindowTokens <= c.OpenAI.MaxTokens {
		return domain.NewConfigurationError("openai.context_window_tokens",
			fmt.Sprintf("must exceed openai.max_tokens (%d)", c.OpenAI.MaxTokens))
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return domain.NewConfigurationError("openai.temperature",
			fmt.Sprintf("must be between 0 and 2, got %g", c.OpenAI.Temperature))
	}
	switch c.OpenAI.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return domain.NewConfigurationError("openai.budget.action",
			fmt.Sprintf("must be \"warn\" or \"reject\", got %q", c.OpenAI.Budget.Action))
	}
	if overlap := c.Ingest.Overlap(); overlap < 0 || overlap >= c.Ingest.ChunkSize {
		return domain.NewConfigurationError("ingest.chunk_overlap",
			fmt.Sprintf("must be in [0, %d), got %d", c.Ingest.ChunkSize, overlap))
	}
	switch c.Stream.Framing {
	case "jsonl", "control":
	default:
		return domain.NewConfigurationError("stream.framing",
			fmt.Sprintf("must be \"jsonl\" or \"control\", got %q", c.Stream.Framing))
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
