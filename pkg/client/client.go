// Package client is the Go client for the ragstream HTTP API.
//
// Query decodes the answer stream incrementally, so callers can render the
// answer while it is being generated:
//
//	c, _ := client.New("http://localhost:8080", client.WithAPIKey(key))
//	ans, err := c.Query(ctx, client.QueryRequest{Question: "What is RAG?", UseRAG: true},
//		client.WithAnswerHandler(func(s string) { fmt.Print("\r", s) }))
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/ragstream/internal/version"
	"github.com/kailas-cloud/ragstream/pkg/stream"
)

// HeaderFraming names the framing strategy of a /query response.
const HeaderFraming = "X-Stream-Framing"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to a ragstream server. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	maxUpload int64
	framing   stream.Strategy
	userAgent string
	obs       *observer
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ragstream: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ragstream: base url %q: scheme must be http or https", baseURL)
	}

	cfg := clientConfig{
		httpClient:     http.DefaultClient,
		maxUploadBytes: DefaultMaxUploadBytes,
		framing:        stream.StrategyJSONLines,
	}
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = http.DefaultClient
	}
	if _, err := stream.ParseStrategy(string(cfg.framing)); err != nil {
		return nil, fmt.Errorf("ragstream: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   u,
		http:      cfg.httpClient,
		apiKey:    cfg.apiKey,
		maxUpload: cfg.maxUploadBytes,
		framing:   cfg.framing,
		userAgent: version.UserAgent("client"),
		obs:       obs,
	}, nil
}

// UploadResult is the server's reply to a successful upload.
type UploadResult struct {
	ChunkCount int    `json:"chunkCount"`
	DocumentID string `json:"documentId"`
}

// Upload sends a PDF for ingestion. Files over the client limit fail with
// ErrFileTooLarge without contacting the server.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (res UploadResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upload", start, err, "filename", filename) }()

	data, err := io.ReadAll(io.LimitReader(r, c.maxUpload+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("ragstream: read file: %w", err)
	}
	if int64(len(data)) > c.maxUpload {
		return UploadResult{}, fmt.Errorf("%w: %s is over %d bytes", ErrFileTooLarge, filename, c.maxUpload)
	}

	body, contentType, err := multipartBody(filename, data)
	if err != nil {
		return UploadResult{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("ragstream: upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return UploadResult{}, fmt.Errorf("ragstream: decode upload response: %w", err)
	}
	return res, nil
}

func multipartBody(filename string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("ragstream: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("ragstream: build form: %w", err)
	}
	if err := mw.WriteField("filename", filepath.Base(filename)); err != nil {
		return nil, "", fmt.Errorf("ragstream: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("ragstream: build form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// HealthStatus is the server's health report.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every server check passed.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// Health fetches the health report. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", http.NoBody)
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("ragstream: health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("ragstream: decode health response: %w", err)
	}
	return hs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("ragstream: build request: %w", err)
	}
	u := c.baseURL.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("ragstream: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// decodeAPIError reads a {"error": ...} body. Non-JSON bodies become the message.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error       string `json:"error"`
		StoredCount int    `json:"storedCount"`
		ChunkCount  int    `json:"chunkCount"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Message = body.Error
	apiErr.StoredCount = body.StoredCount
	apiErr.ChunkCount = body.ChunkCount
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
