package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// AbortMessage is the error event text sent when a source fails mid-stream.
const AbortMessage = "generation failed"

// Source yields events until io.EOF.
type Source interface {
	Recv() (Event, error)
}

// Pipe drains src into f. On io.EOF the framer is closed; on any other
// source error (or ctx cancellation) the framer is aborted and the error returned.
// The next event is pulled only after the previous one was written.
func Pipe(ctx context.Context, f Framer, src Source) (int, error) {
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, errors.Join(err, f.Abort(AbortMessage))
		}
		ev, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return written, f.Close()
		}
		if err != nil {
			return written, errors.Join(err, f.Abort(AbortMessage))
		}
		if err := f.WriteEvent(ev); err != nil {
			return written, fmt.Errorf("frame event %d: %w", written, err)
		}
		written++
	}
}
