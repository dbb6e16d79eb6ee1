package chi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
	"github.com/kailas-cloud/ragstream/pkg/stream"
)

// HeaderFraming tells the client which decoder to use for the body.
const HeaderFraming = "X-Stream-Framing"

// generationSource is the pull side of an answer stream.
type generationSource interface {
	Recv() (domain.GenerationEvent, error)
}

// writeStream frames the answer into the response body, flushing after every event.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, src generationSource) {
	log := s.requestLogger(r)
	rc := http.NewResponseController(w)
	fw := &flushWriter{w: w, rc: rc}

	framer, err := stream.NewFramer(s.framing, fw)
	if err != nil {
		log.Error("Create framer", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	// Ответ может идти дольше WriteTimeout сервера.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug("Clear write deadline", zap.Error(err))
	}

	h := w.Header()
	h.Set("Content-Type", contentType(s.framing))
	h.Set(HeaderFraming, string(s.framing))
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	written, err := stream.Pipe(r.Context(), framer, &eventSource{src: src, framing: string(s.framing)})
	switch {
	case err == nil:
		log.Debug("Answer streamed", zap.Int("events", written))
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		log.Info("Client went away mid-stream", zap.Int("events", written), zap.Error(err))
	default:
		metrics.StreamEventsTotal.WithLabelValues(string(s.framing), string(stream.TypeError)).Inc()
		log.Warn("Answer stream aborted", zap.Int("events", written), zap.Error(err))
	}
}

func contentType(framing stream.Strategy) string {
	if framing == stream.StrategyControl {
		return "text/plain; charset=utf-8"
	}
	return "application/x-ndjson; charset=utf-8"
}

// flushWriter pushes every framed event to the client immediately.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write body: %w", err)
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, fmt.Errorf("flush body: %w", err)
	}
	return n, nil
}

// eventSource converts generation events into wire events.
type eventSource struct {
	src     generationSource
	framing string
}

func (e *eventSource) Recv() (stream.Event, error) {
	ev, err := e.src.Recv()
	if err != nil {
		return stream.Event{}, err //nolint:wrapcheck // io.EOF must reach Pipe as is
	}

	var out stream.Event
	switch ev.Kind {
	case domain.EventChunk:
		out = stream.Chunk(ev.Text)
	case domain.EventDocument:
		out, err = stream.Document(toContextDocument(&ev.Document))
		if err != nil {
			return stream.Event{}, fmt.Errorf("document event: %w", err)
		}
	default:
		return stream.Event{}, fmt.Errorf("%w: %q", stream.ErrUnknownEventType, ev.Kind)
	}

	metrics.StreamEventsTotal.WithLabelValues(e.framing, string(out.Type)).Inc()
	return out, nil
}

// contextDocument is the wire form of one retrieved chunk.
type contextDocument struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Chunk contextChunk `json:"chunk"`
}

type contextChunk struct {
	DocumentID  string `json:"documentId"`
	URL         string `json:"url,omitempty"`
	Text        string `json:"text"`
	Index       int    `json:"index"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

func toContextDocument(rc *domain.RetrievedContext) contextDocument {
	return contextDocument{
		ID:    rc.DocumentID + ":" + strconv.Itoa(rc.Index),
		Score: rc.Score,
		Chunk: contextChunk{
			DocumentID:  rc.DocumentID,
			URL:         rc.SourceURL,
			Text:        rc.Text,
			Index:       rc.Index,
			StartOffset: rc.StartOffset,
			EndOffset:   rc.EndOffset,
		},
	}
}
