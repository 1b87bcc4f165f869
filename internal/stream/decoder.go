package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
)

// ErrStreamTruncated is returned when the stream ends before a terminal
// event (answer_complete or error) was decoded and the context was not
// cancelled.
var ErrStreamTruncated = errors.New("stream ended without terminal event")

// Handlers receive decoded events. A nil handler skips that event type.
// A handler returning an error stops decoding.
type Handlers struct {
	OnChunk    func(chunk string) error
	OnComplete func(sources []Source, sessionID string) error
	OnError    func(message string) error
}

// Decoder incrementally decodes a named-event stream from an unbounded
// byte stream. Network delivery may split or coalesce reads arbitrarily
// relative to event boundaries, so the decoder keeps a carry-over buffer
// and only acts on data once a full line, and then a full event block,
// has arrived. Malformed payloads on recognized event types are logged
// and dropped without terminating the stream.
type Decoder struct {
	r        io.Reader
	handlers Handlers
	logger   *log.Logger

	carry     []byte
	eventType string
	data      []byte
	hasData   bool
}

// NewDecoder wraps r. The logger may be nil, in which case malformed
// payloads are reported through the default logger.
func NewDecoder(r io.Reader, h Handlers, logger *log.Logger) *Decoder {
	if logger == nil {
		logger = log.New(log.Writer(), "[STREAM] ", log.LstdFlags)
	}
	return &Decoder{r: r, handlers: h, logger: logger}
}

// Run reads until a terminal event has been dispatched, the context is
// cancelled, or the stream ends. It returns nil after a terminal event,
// ctx.Err() on cancellation, and ErrStreamTruncated if the stream closed
// mid-answer.
func (d *Decoder) Run(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := d.r.Read(buf)
		if n > 0 {
			d.carry = append(d.carry, buf[:n]...)
			done, err := d.drain()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if readErr == io.EOF {
				return ErrStreamTruncated
			}
			return readErr
		}
	}
}

// drain consumes every complete line in the carry-over buffer. Partial
// lines stay buffered until the terminating newline arrives.
func (d *Decoder) drain() (terminal bool, err error) {
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			return false, nil
		}
		line := strings.TrimRight(string(d.carry[:idx]), "\r")
		d.carry = d.carry[idx+1:]

		terminal, err = d.line(line)
		if err != nil || terminal {
			return terminal, err
		}
	}
}

func (d *Decoder) line(line string) (terminal bool, err error) {
	switch {
	case line == "":
		// Blank line closes the event block; only now is the event
		// complete enough to dispatch.
		return d.dispatch()
	case strings.HasPrefix(line, "event:"):
		d.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
	case strings.HasPrefix(line, "data:"):
		d.data = []byte(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		d.hasData = true
	default:
		// Comment or unknown field; per the protocol these are ignored.
	}
	return false, nil
}

func (d *Decoder) dispatch() (terminal bool, err error) {
	eventType, data, hasData := d.eventType, d.data, d.hasData
	d.eventType, d.data, d.hasData = "", nil, false

	if eventType == "" || !hasData {
		// Incomplete block (heartbeat or stray blank line); skip.
		return false, nil
	}

	switch EventType(eventType) {
	case EventChunk:
		var p chunkPayload
		if err := json.Unmarshal(data, &p); err != nil {
			d.logger.Printf("dropping malformed %s payload: %v", eventType, err)
			return false, nil
		}
		if d.handlers.OnChunk != nil {
			if err := d.handlers.OnChunk(p.Chunk); err != nil {
				return false, err
			}
		}
		return false, nil
	case EventComplete:
		var p completePayload
		if err := json.Unmarshal(data, &p); err != nil {
			d.logger.Printf("dropping malformed %s payload: %v", eventType, err)
			return false, nil
		}
		if d.handlers.OnComplete != nil {
			if err := d.handlers.OnComplete(p.Sources, p.SessionID); err != nil {
				return false, err
			}
		}
		return true, nil
	case EventError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			d.logger.Printf("dropping malformed %s payload: %v", eventType, err)
			return false, nil
		}
		if d.handlers.OnError != nil {
			if err := d.handlers.OnError(p.Error); err != nil {
				return false, err
			}
		}
		return true, nil
	default:
		// Unrecognized event name: best-effort decoding skips it.
		return false, nil
	}
}
