package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func mustDocument(t *testing.T, v any) Event {
	t.Helper()
	ev, err := Document(v)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	return ev
}

func TestLineFramer_Scenario(t *testing.T) {
	var buf bytes.Buffer
	f := NewLineFramer(&buf)

	events := []Event{
		Chunk("Hel"),
		Chunk("lo"),
		mustDocument(t, map[string]string{"id": "d1"}),
	}
	for _, ev := range events {
		if err := f.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := `{"type":"chunk","value":"Hel"}` + "\n" +
		`{"type":"chunk","value":"lo"}` + "\n" +
		`{"type":"document","value":{"id":"d1"}}` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("wire mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestLineFramer_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	f := NewLineFramer(&buf)
	if err := f.WriteEvent(Chunk("a < b && \"c\"\n")); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	want := `{"type":"chunk","value":"a < b && \"c\"\n"}` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLineFramer_Abort(t *testing.T) {
	var buf bytes.Buffer
	f := NewLineFramer(&buf)
	_ = f.WriteEvent(Chunk("par"))
	if err := f.Abort("generation failed"); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	want := `{"type":"chunk","value":"par"}` + "\n" + `{"type":"error","value":"generation failed"}` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if err := f.WriteEvent(Chunk("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Abort, got %v", err)
	}
}

func TestControlFramer_Scenario(t *testing.T) {
	var buf bytes.Buffer
	f := NewControlFramer(&buf)

	if err := f.WriteEvent(Chunk("Hi")); err != nil {
		t.Fatalf("WriteEvent chunk: %v", err)
	}
	if err := f.WriteEvent(mustDocument(t, map[string]string{"id": "d1"})); err != nil {
		t.Fatalf("WriteEvent document: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []byte("Hi\x1e{\"id\":\"d1\"}\x1d")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %q, want %q", buf.Bytes(), want)
	}
}

func TestControlFramer_SeparatorOnce(t *testing.T) {
	var buf bytes.Buffer
	f := NewControlFramer(&buf)
	_ = f.WriteEvent(Chunk("a"))
	_ = f.WriteEvent(mustDocument(t, 1))
	_ = f.WriteEvent(mustDocument(t, 2))
	_ = f.Close()

	if n := bytes.Count(buf.Bytes(), []byte{GroupSeparator}); n != 1 {
		t.Errorf("expected one group separator, got %d", n)
	}
	if n := bytes.Count(buf.Bytes(), []byte{RecordSeparator}); n != 2 {
		t.Errorf("expected two record separators, got %d", n)
	}
}

func TestControlFramer_NoDocumentsStillSeparates(t *testing.T) {
	var buf bytes.Buffer
	f := NewControlFramer(&buf)
	_ = f.WriteEvent(Chunk("answer"))
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := buf.String(); got != "answer\x1e" {
		t.Errorf("got %q", got)
	}
}

func TestControlFramer_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   error
	}{
		{"group separator in text", []Event{Chunk("a\x1eb")}, ErrReservedByte},
		{"record separator in text", []Event{Chunk("a\x1db")}, ErrReservedByte},
		{"chunk after document", []Event{{Type: TypeDocument, Document: json.RawMessage(`{}`)}, Chunk("late")}, ErrOutOfOrder},
		{"error event", []Event{{Type: TypeError, Message: "x"}}, ErrUnsupportedEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewControlFramer(&bytes.Buffer{})
			var err error
			for _, ev := range tt.events {
				if err = f.WriteEvent(ev); err != nil {
					break
				}
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestControlFramer_AbortWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	f := NewControlFramer(&buf)
	_ = f.WriteEvent(Chunk("partial"))
	if err := f.Abort("boom"); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if got := buf.String(); got != "partial" {
		t.Errorf("got %q", got)
	}
	if err := f.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

type countingWriter struct {
	writes int
	buf    bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}

func TestFramers_OneWritePerEvent(t *testing.T) {
	for _, s := range []Strategy{StrategyJSONLines, StrategyControl} {
		t.Run(string(s), func(t *testing.T) {
			w := &countingWriter{}
			f, err := NewFramer(s, w)
			if err != nil {
				t.Fatalf("NewFramer: %v", err)
			}
			_ = f.WriteEvent(Chunk("a"))
			_ = f.WriteEvent(Chunk("b"))
			_ = f.WriteEvent(mustDocument(t, map[string]int{"n": 1}))
			if w.writes != 3 {
				t.Errorf("expected 3 writes, got %d", w.writes)
			}
		})
	}
}

func TestNewFramer_UnknownStrategy(t *testing.T) {
	if _, err := NewFramer("sse", &bytes.Buffer{}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyJSONLines, false},
		{"jsonl", StrategyJSONLines, false},
		{" Control ", StrategyControl, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
