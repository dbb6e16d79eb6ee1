package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// LineDecoder decodes a JSON-lines stream with a rolling buffer.
//
// An unreadable line before the first document stays pending until the next
// readable event settles it: a chunk means answer text was lost, so the answer
// is frozen and Close reports ErrMalformedContent; a document (or a clean end
// of stream) means it was a record and only a warning is kept. After the first
// document, unreadable lines are skipped records.
type LineDecoder struct {
	cfg decoderConfig

	buf      []byte
	consumed int64

	answer   strings.Builder
	docs     []json.RawMessage
	events   []Event
	warnings []error
	remote   *RemoteError
	pending  *ParseError
	broken   *ParseError
	closed   bool
}

// NewLineDecoder creates a JSON-lines decoder.
func NewLineDecoder(opts ...DecoderOption) *LineDecoder {
	return &LineDecoder{cfg: newDecoderConfig(opts)}
}

// Write appends p and decodes every complete line.
func (d *LineDecoder) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	d.buf = append(d.buf, p...)

	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		d.handleLine(d.buf[start:start+i], d.consumed+int64(start))
		start += i + 1
	}

	d.consumed += int64(start)
	n := copy(d.buf, d.buf[start:])
	d.buf = d.buf[:n]
	return len(p), nil
}

func (d *LineDecoder) handleLine(line []byte, offset int64) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		perr := &ParseError{Offset: offset, Err: err}
		d.warnings = append(d.warnings, perr)
		if len(d.docs) == 0 && d.broken == nil && d.pending == nil {
			d.pending = perr
		}
		return
	}
	d.events = append(d.events, ev)

	switch ev.Type {
	case TypeChunk:
		if d.pending != nil {
			d.broken, d.pending = d.pending, nil
		}
		if d.broken != nil || ev.Text == "" {
			return
		}
		d.answer.WriteString(ev.Text)
		d.cfg.answer(d.answer.String())
	case TypeDocument:
		d.pending = nil
		d.docs = append(d.docs, ev.Document)
		d.cfg.document(ev.Document)
	case TypeError:
		d.remote = &RemoteError{Message: ev.Message}
	}
}

// Answer returns the concatenated chunk text.
func (d *LineDecoder) Answer() string { return d.answer.String() }

// Documents returns the decoded records in stream order.
func (d *LineDecoder) Documents() []json.RawMessage { return d.docs }

// Events returns every decoded event in stream order.
func (d *LineDecoder) Events() []Event { return d.events }

// Warnings returns the skipped lines.
func (d *LineDecoder) Warnings() []error { return d.warnings }

// Close reports leftover bytes after the last newline as ErrTruncated,
// a remote error event as *RemoteError, and a lost answer line as ErrMalformedContent.
func (d *LineDecoder) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true

	var errs []error
	if d.remote != nil {
		errs = append(errs, d.remote)
	}
	if d.broken != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrMalformedContent, d.broken))
	}
	if len(bytes.TrimSpace(d.buf)) > 0 {
		errs = append(errs, &ParseError{
			Offset: d.consumed,
			Err:    fmt.Errorf("%w: %d bytes after last newline", ErrTruncated, len(d.buf)),
		})
	}
	return errors.Join(errs...)
}
