package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

type sliceSource struct {
	events []Event
	err    error // returned after events are exhausted; io.EOF when nil
	pulls  int
}

func (s *sliceSource) Recv() (Event, error) {
	s.pulls++
	if len(s.events) == 0 {
		if s.err != nil {
			return Event{}, s.err
		}
		return Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func TestPipe_Complete(t *testing.T) {
	var buf bytes.Buffer
	src := &sliceSource{events: []Event{Chunk("a"), Chunk("b")}}

	n, err := Pipe(context.Background(), NewControlFramer(&buf), src)
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
	if buf.String() != "ab\x1e" {
		t.Errorf("got %q", buf.String())
	}
}

func TestPipe_SourceFailureAborts(t *testing.T) {
	boom := errors.New("upstream reset")
	var buf bytes.Buffer
	src := &sliceSource{events: []Event{Chunk("par")}, err: boom}

	_, err := Pipe(context.Background(), NewLineFramer(&buf), src)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	d := NewLineDecoder()
	_, _ = d.Write(buf.Bytes())
	var remote *RemoteError
	if !errors.As(d.Close(), &remote) || remote.Message != AbortMessage {
		t.Errorf("expected remote error event, wire %q", buf.String())
	}
	if d.Answer() != "par" {
		t.Errorf("answer %q", d.Answer())
	}
}

func TestPipe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &sliceSource{events: []Event{Chunk("never")}}

	_, err := Pipe(ctx, NewLineFramer(&bytes.Buffer{}), src)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.pulls != 0 {
		t.Errorf("expected no pulls after cancellation, got %d", src.pulls)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestPipe_WriteFailureStopsPulling(t *testing.T) {
	src := &sliceSource{events: []Event{Chunk("a"), Chunk("b"), Chunk("c")}}
	_, err := Pipe(context.Background(), NewLineFramer(failingWriter{}), src)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected write error, got %v", err)
	}
	if src.pulls != 1 {
		t.Errorf("expected 1 pull, got %d", src.pulls)
	}
}
