package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStrategy signals an unsupported framing strategy name.
	ErrUnknownStrategy = errors.New("unknown framing strategy")
	// ErrUnknownEventType signals an event type outside chunk/document/error.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrUnsupportedEvent signals an event the strategy cannot represent.
	ErrUnsupportedEvent = errors.New("event not supported by framing strategy")
	// ErrReservedByte signals answer text containing a control-byte separator.
	ErrReservedByte = errors.New("text contains reserved separator byte")
	// ErrOutOfOrder signals a chunk written after the first document.
	ErrOutOfOrder = errors.New("chunk event after document event")
	// ErrClosed signals use of a closed framer or decoder.
	ErrClosed = errors.New("stream closed")
	// ErrTruncated signals a stream that ended inside a frame.
	ErrTruncated = errors.New("stream truncated")
	// ErrMalformedContent signals an unreadable frame in the answer section.
	ErrMalformedContent = errors.New("malformed content frame")
)

// ParseError describes a frame that could not be decoded.
// Offset is the position of the frame's first byte in the stream.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stream: parse error at byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RemoteError carries an error event sent by the producer mid-stream.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "stream: remote error: " + e.Message
}
