package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ControlDecoder decodes a control-byte stream. It keeps the whole byte
// history because records can only be isolated once GroupSeparator is seen.
type ControlDecoder struct {
	cfg decoderConfig

	history   []byte
	separator int // index of GroupSeparator in history, -1 until seen

	answer   string
	docs     []json.RawMessage
	warnings []error
	closed   bool
}

// NewControlDecoder creates a control-byte decoder.
func NewControlDecoder(opts ...DecoderOption) *ControlDecoder {
	return &ControlDecoder{cfg: newDecoderConfig(opts), separator: -1}
}

// Write appends p and re-derives the answer from the full history.
func (d *ControlDecoder) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if d.separator < 0 {
		if i := bytes.IndexByte(p, GroupSeparator); i >= 0 {
			d.separator = len(d.history) + i
		}
	}
	d.history = append(d.history, p...)
	d.refreshAnswer(false)
	return len(p), nil
}

func (d *ControlDecoder) refreshAnswer(final bool) {
	text := d.history
	if d.separator >= 0 {
		text = d.history[:d.separator]
	} else if !final {
		text = trimPartialRune(text)
	}
	answer := strings.ToValidUTF8(string(text), string(utf8.RuneError))
	if answer == d.answer {
		return
	}
	d.answer = answer
	d.cfg.answer(answer)
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			return b
		}
	}
	return b
}

// Answer returns the text before GroupSeparator.
func (d *ControlDecoder) Answer() string { return d.answer }

// Documents returns the records parsed by Close.
func (d *ControlDecoder) Documents() []json.RawMessage { return d.docs }

// Warnings returns the skipped records.
func (d *ControlDecoder) Warnings() []error { return d.warnings }

// Close splits the record section and parses every non-empty record.
// A stream without GroupSeparator, or whose last record lacks its
// RecordSeparator, is reported as ErrTruncated; the answer is kept.
func (d *ControlDecoder) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true

	if d.separator < 0 {
		d.refreshAnswer(true)
		return &ParseError{
			Offset: int64(len(d.history)),
			Err:    fmt.Errorf("%w: no group separator", ErrTruncated),
		}
	}

	var truncated error
	offset := int64(d.separator + 1)
	rest := d.history[d.separator+1:]
	for len(rest) > 0 {
		record, tail, terminated := bytes.Cut(rest, []byte{RecordSeparator})
		start := offset
		offset += int64(len(record)) + 1
		rest = tail

		if len(bytes.TrimSpace(record)) == 0 {
			continue
		}
		if !terminated {
			truncated = &ParseError{Offset: start, Err: fmt.Errorf("%w: unterminated record", ErrTruncated)}
			d.warnings = append(d.warnings, truncated)
			break
		}
		if !json.Valid(record) {
			d.warnings = append(d.warnings, &ParseError{Offset: start, Err: errors.New("invalid record JSON")})
			continue
		}
		doc := append(json.RawMessage(nil), record...)
		d.docs = append(d.docs, doc)
		d.cfg.document(doc)
	}
	return truncated
}
