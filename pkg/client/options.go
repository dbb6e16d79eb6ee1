package client

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/ragstream/pkg/stream"
)

// DefaultMaxUploadBytes is the client-side upload limit.
const DefaultMaxUploadBytes int64 = 2 << 20

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient     *http.Client
	apiKey         string
	maxUploadBytes int64
	framing        stream.Strategy

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithHTTPClient replaces http.DefaultClient.
// The client must not set a total Timeout if answers are long; use ctx instead.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithAPIKey sends the key as a Bearer token.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithMaxUploadBytes sets the local upload limit checked before submission.
// Default: 2 MiB.
func WithMaxUploadBytes(n int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxUploadBytes = n
	})
}

// WithFraming sets the decoder used when the server omits the framing header.
// Default: jsonl.
func WithFraming(s stream.Strategy) Option {
	return optionFunc(func(c *clientConfig) {
		c.framing = s
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// QueryOption configures a single Query call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	onAnswer   func(answer string)
	onDocument func(doc Document)
}

// WithAnswerHandler is called with the full answer so far whenever it grows.
func WithAnswerHandler(fn func(answer string)) QueryOption {
	return func(c *queryConfig) {
		c.onAnswer = fn
	}
}

// WithDocumentHandler is called once per decoded context document.
func WithDocumentHandler(fn func(doc Document)) QueryOption {
	return func(c *queryConfig) {
		c.onDocument = fn
	}
}
