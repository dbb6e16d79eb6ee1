package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Strategy names a wire framing.
type Strategy string

const (
	// StrategyJSONLines frames every event as one JSON line.
	StrategyJSONLines Strategy = "jsonl"
	// StrategyControl frames events with reserved control bytes.
	StrategyControl Strategy = "control"
)

// ParseStrategy resolves a strategy name; empty selects StrategyJSONLines.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyJSONLines:
		return StrategyJSONLines, nil
	case StrategyControl:
		return StrategyControl, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

const (
	// GroupSeparator ends the answer section of a control-byte stream.
	GroupSeparator byte = 0x1E
	// RecordSeparator terminates every record of a control-byte stream.
	RecordSeparator byte = 0x1D
)

// EventType is the wire discriminator of an Event.
type EventType string

const (
	// TypeChunk carries a text delta.
	TypeChunk EventType = "chunk"
	// TypeDocument carries one source record.
	TypeDocument EventType = "document"
	// TypeError carries a producer failure message.
	TypeError EventType = "error"
)

// Event is one frame payload.
type Event struct {
	Type     EventType
	Text     string          // TypeChunk
	Document json.RawMessage // TypeDocument
	Message  string          // TypeError
}

// Chunk builds a text delta event.
func Chunk(text string) Event {
	return Event{Type: TypeChunk, Text: text}
}

// Document builds a document event from any JSON-marshalable value.
func Document(v any) (Event, error) {
	raw, err := marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("marshal document: %w", err)
	}
	return Event{Type: TypeDocument, Document: raw}, nil
}

type wireEvent struct {
	Type  EventType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the event as {"type":...,"value":...}.
func (e Event) MarshalJSON() ([]byte, error) {
	var (
		value json.RawMessage
		err   error
	)
	switch e.Type {
	case TypeChunk:
		value, err = marshal(e.Text)
	case TypeError:
		value, err = marshal(e.Message)
	case TypeDocument:
		value, err = compact(e.Document)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if err != nil {
		return nil, err
	}
	return marshal(wireEvent{Type: e.Type, Value: value})
}

// UnmarshalJSON decodes {"type":...,"value":...}.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err //nolint:wrapcheck // caller wraps into ParseError
	}
	ev := Event{Type: w.Type}
	switch w.Type {
	case TypeChunk:
		if err := json.Unmarshal(w.Value, &ev.Text); err != nil {
			return fmt.Errorf("chunk value: %w", err)
		}
	case TypeError:
		if err := json.Unmarshal(w.Value, &ev.Message); err != nil {
			return fmt.Errorf("error value: %w", err)
		}
	case TypeDocument:
		if len(w.Value) == 0 || bytes.Equal(w.Value, []byte("null")) {
			return fmt.Errorf("document value is empty")
		}
		ev.Document = append(json.RawMessage(nil), w.Value...)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
	}
	*e = ev
	return nil
}

// marshal encodes v compactly without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err //nolint:wrapcheck // thin helper
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("document value is empty")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("document value: %w", err)
	}
	return buf.Bytes(), nil
}
