package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// trickleReader returns at most n bytes per Read so event boundaries
// never line up with read boundaries.
type trickleReader struct {
	data []byte
	n    int
}

func (r *trickleReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.n
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func encodeAll(t *testing.T, events []Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return buf.Bytes()
}

func TestRoundTripOrdering(t *testing.T) {
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Type: EventChunk, Chunk: "Bitcoin "},
		{Type: EventChunk, Chunk: "is up "},
		{Type: EventChunk, Chunk: "today."},
		{Type: EventComplete, SessionID: "sess-1", Sources: []Source{
			{Title: "BTC rallies", URL: "https://a/1", Source: "CoinDesk", PublishedAt: published},
		}},
	}
	raw := encodeAll(t, events)

	// Feed the stream one byte at a time: every line and every event
	// block is split across reads.
	var got []string
	var sources []Source
	var sessionID string
	dec := NewDecoder(&trickleReader{data: raw, n: 1}, Handlers{
		OnChunk: func(chunk string) error {
			got = append(got, chunk)
			return nil
		},
		OnComplete: func(s []Source, sid string) error {
			sources, sessionID = s, sid
			return nil
		},
		OnError: func(msg string) error {
			t.Fatalf("unexpected error event: %s", msg)
			return nil
		},
	}, nil)

	if err := dec.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(got, "") != "Bitcoin is up today." {
		t.Fatalf("chunk concatenation mismatch: %q", strings.Join(got, ""))
	}
	if sessionID != "sess-1" {
		t.Fatalf("session id: got %q", sessionID)
	}
	if len(sources) != 1 || sources[0].Title != "BTC rallies" || sources[0].URL != "https://a/1" {
		t.Fatalf("sources mismatch: %+v", sources)
	}
	if !sources[0].PublishedAt.Equal(published) {
		t.Fatalf("published_at mismatch: %v", sources[0].PublishedAt)
	}
}

func TestDecoderStopsAfterComplete(t *testing.T) {
	raw := encodeAll(t, []Event{
		{Type: EventChunk, Chunk: "a"},
		{Type: EventComplete, SessionID: "s"},
		// Anything after the terminal event must never be surfaced.
		{Type: EventChunk, Chunk: "late"},
		{Type: EventError, Err: "late error"},
	})

	var chunks []string
	completes := 0
	dec := NewDecoder(bytes.NewReader(raw), Handlers{
		OnChunk: func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		},
		OnComplete: func([]Source, string) error {
			completes++
			return nil
		},
		OnError: func(msg string) error {
			t.Fatalf("error event after complete: %s", msg)
			return nil
		},
	}, nil)

	if err := dec.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if completes != 1 {
		t.Fatalf("expected exactly one complete, got %d", completes)
	}
	if len(chunks) != 1 || chunks[0] != "a" {
		t.Fatalf("chunks after terminal leaked: %v", chunks)
	}
}

func TestDecoderErrorEventTerminal(t *testing.T) {
	raw := encodeAll(t, []Event{{Type: EventError, Err: "generation failed"}})

	var got string
	dec := NewDecoder(bytes.NewReader(raw), Handlers{
		OnError: func(msg string) error {
			got = msg
			return nil
		},
	}, nil)
	if err := dec.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "generation failed" {
		t.Fatalf("error message: got %q", got)
	}
}

func TestDecoderSkipsMalformedPayload(t *testing.T) {
	raw := []byte("event: answer_chunk\ndata: {not json\n\n" +
		"event: answer_chunk\ndata: {\"chunk\":\"ok\"}\n\n" +
		"event: answer_complete\ndata: {\"sources\":[],\"session_id\":\"s\"}\n\n")

	var chunks []string
	dec := NewDecoder(bytes.NewReader(raw), Handlers{
		OnChunk: func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		},
	}, nil)
	if err := dec.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "ok" {
		t.Fatalf("expected malformed event dropped, got %v", chunks)
	}
}

func TestDecoderIgnoresUnknownEvents(t *testing.T) {
	raw := []byte("event: heartbeat\ndata: {}\n\n" +
		"event: answer_complete\ndata: {\"sources\":[],\"session_id\":\"s\"}\n\n")

	done := false
	dec := NewDecoder(bytes.NewReader(raw), Handlers{
		OnComplete: func([]Source, string) error {
			done = true
			return nil
		},
	}, nil)
	if err := dec.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !done {
		t.Fatal("complete event not delivered")
	}
}

func TestDecoderPartialLineNotParsed(t *testing.T) {
	// The data line arrives in a separate read from the event line, and
	// the final newline is missing: nothing must be dispatched.
	raw := []byte("event: answer_chunk\ndata: {\"chunk\":\"half")
	dec := NewDecoder(bytes.NewReader(raw), Handlers{
		OnChunk: func(chunk string) error {
			t.Fatalf("partial line parsed as complete: %q", chunk)
			return nil
		},
	}, nil)
	err := dec.Run(context.Background())
	if !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("expected ErrStreamTruncated, got %v", err)
	}
}

func TestDecoderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := NewDecoder(bytes.NewReader([]byte("event: answer_chunk\n")), Handlers{}, nil)
	if err := dec.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
