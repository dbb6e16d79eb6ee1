package stream

import (
	"fmt"
	"io"
	"strings"
)

const reserved = string(GroupSeparator) + string(RecordSeparator)

// Framer serializes events onto a writer in the order they are written.
// Each WriteEvent issues exactly one Write, so a flushing writer flushes per event.
// Framers never close the underlying writer.
type Framer interface {
	// WriteEvent encodes a single event.
	WriteEvent(ev Event) error
	// Close ends a complete stream.
	Close() error
	// Abort ends a stream that failed mid-generation.
	Abort(message string) error
}

// NewFramer returns the framer for strategy.
func NewFramer(strategy Strategy, w io.Writer) (Framer, error) {
	switch strategy {
	case StrategyJSONLines:
		return NewLineFramer(w), nil
	case StrategyControl:
		return NewControlFramer(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// LineFramer writes one JSON object per event, each followed by '\n'.
type LineFramer struct {
	w      io.Writer
	closed bool
}

// NewLineFramer creates a JSON-lines framer.
func NewLineFramer(w io.Writer) *LineFramer {
	return &LineFramer{w: w}
}

// WriteEvent writes ev as a single line.
func (f *LineFramer) WriteEvent(ev Event) error {
	if f.closed {
		return ErrClosed
	}
	line, err := ev.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	line = append(line, '\n')
	if _, err := f.w.Write(line); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	return nil
}

// Close marks the stream complete. Nothing is written.
func (f *LineFramer) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return nil
}

// Abort appends an error event and closes the framer.
func (f *LineFramer) Abort(message string) error {
	if f.closed {
		return ErrClosed
	}
	err := f.WriteEvent(Event{Type: TypeError, Message: message})
	f.closed = true
	return err
}

// ControlFramer writes raw answer text, one GroupSeparator, then records
// each terminated by RecordSeparator.
type ControlFramer struct {
	w         io.Writer
	separated bool
	closed    bool
}

// NewControlFramer creates a control-byte framer.
func NewControlFramer(w io.Writer) *ControlFramer {
	return &ControlFramer{w: w}
}

// WriteEvent writes a chunk as raw text or a document as a record.
func (f *ControlFramer) WriteEvent(ev Event) error {
	if f.closed {
		return ErrClosed
	}
	switch ev.Type {
	case TypeChunk:
		return f.writeChunk(ev.Text)
	case TypeDocument:
		return f.writeDocument(ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev.Type)
	}
}

func (f *ControlFramer) writeChunk(text string) error {
	if f.separated {
		return ErrOutOfOrder
	}
	if strings.ContainsAny(text, reserved) {
		return ErrReservedByte
	}
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(f.w, text); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}

func (f *ControlFramer) writeDocument(ev Event) error {
	// JSON never carries raw bytes below 0x20, so a compacted record cannot contain a separator.
	record, err := compact(ev.Document)
	if err != nil {
		return fmt.Errorf("encode document event: %w", err)
	}
	buf := make([]byte, 0, len(record)+2)
	if !f.separated {
		buf = append(buf, GroupSeparator)
	}
	buf = append(buf, record...)
	buf = append(buf, RecordSeparator)
	if _, err := f.w.Write(buf); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	f.separated = true
	return nil
}

// Close writes the GroupSeparator if no document did.
func (f *ControlFramer) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	if f.separated {
		return nil
	}
	f.separated = true
	if _, err := f.w.Write([]byte{GroupSeparator}); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}
	return nil
}

// Abort closes the framer without the GroupSeparator, so the decoder sees a truncated stream.
// The control-byte wire format has no error frame; message is dropped.
func (f *ControlFramer) Abort(_ string) error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return nil
}
