package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	logpkg "github.com/kailas-cloud/ragstream/internal/logger"
	healthuc "github.com/kailas-cloud/ragstream/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragstream/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ragstream/internal/usecase/query"
	usageuc "github.com/kailas-cloud/ragstream/internal/usecase/usage"
	"github.com/kailas-cloud/ragstream/pkg/stream"
)

const (
	// DefaultMaxUploadBytes caps the multipart upload body.
	DefaultMaxUploadBytes int64 = 5 << 20
	// maxQueryBytes caps the JSON body of /query.
	maxQueryBytes int64 = 64 << 10
	// multipartMemory is kept in memory, the rest spills to temp files.
	multipartMemory int64 = 1 << 20
)

// Client-facing messages. Collaborator error text is never echoed.
const (
	msgReadFile      = "Error reading file"
	msgOnlyPDF       = "Only PDF files are supported"
	msgTooLarge      = "File too large"
	msgIngest        = "Error ingesting file"
	msgGenerate      = "Error generating answer"
	msgInvalidBody   = "invalid request body"
	msgQuotaExceeded = "Token budget exceeded"
	msgInternal      = "internal error"
)

// Ingester stores an extracted document.
type Ingester interface {
	Ingest(ctx context.Context, doc domain.Document) (ingestuc.Result, error)
}

// Querier opens an answer stream for a question.
type Querier interface {
	Query(ctx context.Context, req queryuc.Request) (*queryuc.Stream, error)
}

// HealthReporter aggregates collaborator health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding token usage per budget window.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Config holds HTTP surface settings.
type Config struct {
	Framing        stream.Strategy
	MaxUploadBytes int64
}

// Server serves the upload, query, health and metrics endpoints.
type Server struct {
	ingest        Ingester
	query         Querier
	health        HealthReporter
	usage         UsageReporter
	extractor     domain.Extractor
	framing       stream.Strategy
	maxUpload     int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. An empty framing selects jsonl.
// usage may be nil, then GET /usage answers 404.
func NewServer(
	ingest Ingester,
	query Querier,
	health HealthReporter,
	usage UsageReporter,
	extractor domain.Extractor,
	cfg Config,
	logger *zap.Logger,
) (*Server, error) {
	framing, err := stream.ParseStrategy(string(cfg.Framing))
	if err != nil {
		return nil, fmt.Errorf("stream framing: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		ingest:    ingest,
		query:     query,
		health:    health,
		usage:     usage,
		extractor: extractor,
		framing:   framing,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInputValidation, http.StatusBadRequest, ""),
		sentinelHandler(domain.ErrTokenBudgetExceeded, http.StatusPaymentRequired, msgQuotaExceeded),
		sentinelHandler(domain.ErrCollaborator, http.StatusBadGateway, msgGenerate),
	}
	return s, nil
}

// Framing returns the wire strategy used for /query bodies.
func (s *Server) Framing() stream.Strategy { return s.framing }

type uploadResponse struct {
	ChunkCount int    `json:"chunkCount"`
	DocumentID string `json:"documentId"`
}

type uploadErrorResponse struct {
	Error       string `json:"error"`
	StoredCount int    `json:"storedCount"`
	ChunkCount  int    `json:"chunkCount"`
}

// Upload handles POST /upload.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		log.Debug("Parse multipart form", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgReadFile)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgReadFile)
		return
	}
	defer func() { _ = file.Close() }()

	filename := strings.TrimSpace(r.FormValue("filename"))
	if filename == "" {
		filename = header.Filename
	}
	if !isPDF(header.Header.Get("Content-Type"), filename) {
		writeError(w, http.StatusBadRequest, msgOnlyPDF)
		return
	}

	text, err := s.extractor.Extract(r.Context(), file, header.Size)
	if err != nil {
		log.Warn("Text extraction failed", zap.String("filename", filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, msgReadFile)
		return
	}

	res, err := s.ingest.Ingest(r.Context(), domain.Document{
		SourceURL: "file://" + filename,
		RawText:   text,
	})
	if errors.Is(err, domain.ErrEmptyDocument) {
		writeError(w, http.StatusBadRequest, msgReadFile)
		return
	}
	if err != nil {
		log.Warn("Ingestion failed", zap.String("filename", filename), zap.Error(err))
		var pw *domain.PartialWriteError
		if errors.As(err, &pw) {
			writeJSON(w, http.StatusBadRequest, uploadErrorResponse{
				Error:       msgIngest,
				StoredCount: pw.Written,
				ChunkCount:  res.ChunkCount,
			})
			return
		}
		writeError(w, http.StatusBadRequest, msgIngest)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ChunkCount: res.ChunkCount,
		DocumentID: res.DocumentID,
	})
}

// isPDF accepts the declared part type or a .pdf filename.
func isPDF(contentType, filename string) bool {
	if ct, _, _ := strings.Cut(contentType, ";"); strings.EqualFold(strings.TrimSpace(ct), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

type queryRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id,omitempty"`
	UseRAG     bool   `json:"use_rag,omitempty"`
}

// Query handles POST /query. Failures before the first token get a JSON error;
// afterwards the framer's abort signal is the only channel left.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	answer, err := s.query.Query(r.Context(), queryuc.Request{
		Question:     req.Query,
		UseRetrieval: req.UseRAG,
		DocumentID:   req.DocumentID,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer func() { _ = answer.Close() }()

	s.writeStream(w, r, answer)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

type usageResponse struct {
	Period        string        `json:"period"`
	PeriodStartAt time.Time     `json:"periodStartAt"`
	PeriodEndAt   time.Time     `json:"periodEndAt"`
	Usage         usageMetrics  `json:"usage"`
	Budget        budgetPayload `json:"budget"`
}

type usageMetrics struct {
	Tokens  int64            `json:"tokens"`
	ByStage map[string]int64 `json:"byStage"`
}

type budgetPayload struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, "usage reporting disabled")
		return
	}
	period, err := usageuc.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "period must be day or month")
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	byStage := make(map[string]int64, len(report.ByStage))
	for stage, n := range report.ByStage {
		byStage[string(stage)] = n
	}
	resp := usageResponse{
		Period:        string(report.Period),
		PeriodStartAt: report.Start,
		PeriodEndAt:   report.End,
		Usage:         usageMetrics{Tokens: report.Tokens, ByStage: byStage},
		Budget: budgetPayload{
			TokensLimit:     report.Limit,
			TokensRemaining: report.Remaining,
			IsExhausted:     report.Exhausted(),
		},
	}
	if report.Limit > 0 {
		resetsAt := report.End
		resp.Budget.ResetsAt = &resetsAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrPromptTooLarge,
		domain.ErrEmptyDocument,
		domain.ErrInputValidation,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return msgInternal
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// An empty message falls back to the safe sentinel text.
func sentinelHandler(sentinel error, status int, message string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if message != "" {
			msg = message
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// requestLogger prefers the per-request logger placed by the access log middleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}
