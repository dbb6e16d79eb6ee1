package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/chunker"
	"github.com/kailas-cloud/ragstream/internal/config"
	"github.com/kailas-cloud/ragstream/internal/db"
	dbRedis "github.com/kailas-cloud/ragstream/internal/db/redis"
	"github.com/kailas-cloud/ragstream/internal/domain"
	logpkg "github.com/kailas-cloud/ragstream/internal/logger"
	"github.com/kailas-cloud/ragstream/internal/metrics"
	budgetrepo "github.com/kailas-cloud/ragstream/internal/repository/budget"
	chunkrepo "github.com/kailas-cloud/ragstream/internal/repository/chunk"
	"github.com/kailas-cloud/ragstream/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/ragstream/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragstream/internal/transport/openai"
	"github.com/kailas-cloud/ragstream/internal/transport/pdf"
	budgetuc "github.com/kailas-cloud/ragstream/internal/usecase/budget"
	embeddinguc "github.com/kailas-cloud/ragstream/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragstream/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragstream/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ragstream/internal/usecase/query"
	usageuc "github.com/kailas-cloud/ragstream/internal/usecase/usage"
	"github.com/kailas-cloud/ragstream/internal/version"
	"github.com/kailas-cloud/ragstream/pkg/stream"
)

const providerName = "openai"

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragstream API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("framing", cfg.Stream.Framing),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		Standalone: cfg.Database.Standalone,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	distance, err := db.ParseDistance(strings.ToLower(cfg.Vector.Distance))
	if err != nil {
		logger.Fatal("Invalid vector distance", zap.Error(err))
	}
	chunks := chunkrepo.New(store, chunkrepo.Config{
		IndexName:   cfg.Vector.Index,
		KeyPrefix:   cfg.Vector.KeyPrefix + "chunk:",
		Dimensions:  cfg.Vector.Dimensions,
		Distance:    distance,
		HNSWM:       cfg.Vector.HNSWM,
		EFConstruct: cfg.Vector.HNSWEFConstruct,
	})
	if err := chunks.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err), zap.String("index", cfg.Vector.Index))
	}

	ledger, err := buildLedger(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("Invalid token budget", zap.Error(err))
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*Ledger)(nil) wrapped in Spender != nil.
	var spender budgetuc.Spender
	var budgetReader usageuc.BudgetReader
	if ledger != nil {
		spender = ledger
		budgetReader = ledger
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.Vector.Dimensions,
		User:       cfg.OpenAI.User,
		Logger:     logger,
	})
	embedder := buildEmbedder(cfg, base, store, spender, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.OpenAI.EmbeddingModel),
		zap.Int("dimensions", cfg.Vector.Dimensions),
		zap.Bool("cache", cfg.OpenAI.CacheTTLHours > 0),
		zap.Bool("budget", ledger != nil),
	)

	gen := cfg.OpenAI.Generation()
	completion := openaiTransport.NewCompletion(&openaiTransport.CompletionConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       gen.Model,
		MaxTokens:   gen.MaxTokens,
		Temperature: gen.Temperature,
		User:        cfg.OpenAI.User,
		Logger:      logger,
	})

	// Answers are metered by provider-reported usage; health checks bypass the budget.
	metered := budgetuc.NewMeteredCompletion(completion, spender, logger)

	splitter, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap())
	if err != nil {
		logger.Fatal("Invalid chunker settings", zap.Error(err))
	}
	logger.Info("Chunker created", zap.Int("size", splitter.Size()), zap.Int("overlap", splitter.Overlap()))

	ingestSvc := ingestuc.New(splitter, embedder, chunks, logger)
	querySvc := queryuc.New(embedder, chunks, metered, queryuc.Config{
		TopK:         cfg.Query.TopK,
		PromptBudget: gen.PromptBudget(),
	}, logger)
	healthSvc := healthuc.New(store, base, completion)
	usageSvc := usageuc.New(budgetReader)

	server, err := chiTransport.NewServer(ingestSvc, querySvc, healthSvc, usageSvc, pdf.NewExtractor(), chiTransport.Config{
		Framing:        stream.Strategy(cfg.Stream.Framing),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create HTTP server", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildLedger returns nil when no limit is configured.
func buildLedger(
	ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger,
) (*budgetuc.Ledger, error) {
	if !cfg.OpenAI.Budget.Enabled() {
		return nil, nil //nolint:nilnil // budget disabled
	}
	action, err := budgetuc.ParseAction(cfg.OpenAI.Budget.Action)
	if err != nil {
		return nil, err //nolint:wrapcheck // already a ConfigurationError
	}
	limits := budgetuc.Limits{
		Daily:   cfg.OpenAI.Budget.DailyTokenLimit,
		Monthly: cfg.OpenAI.Budget.MonthlyTokenLimit,
	}
	ledger := budgetuc.New(limits, action, logger,
		budgetuc.WithStore(budgetrepo.New(store, cfg.Vector.KeyPrefix, providerName)),
	)
	// Counters of other replicas and previous runs; start from zero if unreachable.
	if err := ledger.Restore(ctx); err != nil {
		logger.Warn("Failed to restore token budget", zap.Error(err))
	}
	return ledger, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	store db.Store,
	budget embeddinguc.Spender,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.OpenAI.CacheTTLHours > 0 {
		embedder = embcache.New(
			base, store, cfg.Vector.KeyPrefix, cfg.OpenAI.EmbeddingModel,
			time.Duration(cfg.OpenAI.CacheTTLHours)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	// Instrumented (budget + metrics + sub-batching)
	return embeddinguc.NewInstrumentedEmbedder(
		embedder, providerName, cfg.OpenAI.EmbeddingModel, budget, logger,
		embeddinguc.WithMaxBatchSize(cfg.OpenAI.EmbeddingBatchSize),
		embeddinguc.WithConcurrency(cfg.OpenAI.EmbeddingConcurrency),
	)
}
