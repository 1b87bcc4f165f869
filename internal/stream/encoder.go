package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes named-event blocks onto a long-lived response stream.
// Each event is framed as an "event:" line, a "data:" line carrying the
// JSON payload, and a blank-line terminator. When the underlying writer
// supports flushing, every event is flushed immediately so chunks reach
// the client without buffering.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder wraps w. If w implements http.Flusher each event is flushed
// as soon as it is written.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes a single event block in emission order.
func (e *Encoder) Encode(ev Event) error {
	var payload any
	switch ev.Type {
	case EventChunk:
		payload = chunkPayload{Chunk: ev.Chunk}
	case EventComplete:
		sources := ev.Sources
		if sources == nil {
			sources = []Source{}
		}
		payload = completePayload{Sources: sources, SessionID: ev.SessionID}
	case EventError:
		payload = errorPayload{Error: ev.Err}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
