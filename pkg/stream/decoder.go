package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// Decoder reconstructs the answer and documents from stream bytes fed in
// arbitrary fragments. It is not safe for concurrent use.
type Decoder interface {
	io.Writer
	// Answer returns the text decoded so far.
	Answer() string
	// Documents returns the records decoded so far.
	Documents() []json.RawMessage
	// Warnings returns skipped frames as *ParseError values.
	Warnings() []error
	// Close finalizes decoding at end of transport.
	Close() error
}

// DecoderOption configures a Decoder.
type DecoderOption interface {
	apply(*decoderConfig)
}

type optionFunc func(*decoderConfig)

func (f optionFunc) apply(c *decoderConfig) { f(c) }

type decoderConfig struct {
	onAnswer   func(string)
	onDocument func(json.RawMessage)
}

// WithAnswerHandler registers a callback invoked with the full current answer
// every time it grows. Rendering the argument is idempotent.
func WithAnswerHandler(fn func(answer string)) DecoderOption {
	return optionFunc(func(c *decoderConfig) {
		c.onAnswer = fn
	})
}

// WithDocumentHandler registers a callback invoked once per decoded record.
func WithDocumentHandler(fn func(doc json.RawMessage)) DecoderOption {
	return optionFunc(func(c *decoderConfig) {
		c.onDocument = fn
	})
}

func newDecoderConfig(opts []DecoderOption) decoderConfig {
	var c decoderConfig
	for _, o := range opts {
		o.apply(&c)
	}
	return c
}

func (c *decoderConfig) answer(s string) {
	if c.onAnswer != nil {
		c.onAnswer(s)
	}
}

func (c *decoderConfig) document(d json.RawMessage) {
	if c.onDocument != nil {
		c.onDocument(d)
	}
}

// NewDecoder returns the decoder for strategy.
func NewDecoder(strategy Strategy, opts ...DecoderOption) (Decoder, error) {
	switch strategy {
	case StrategyJSONLines:
		return NewLineDecoder(opts...), nil
	case StrategyControl:
		return NewControlDecoder(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
