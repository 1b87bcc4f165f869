package stream

import "time"

// EventType names a server-sent event on the answer stream.
type EventType string

const (
	EventChunk    EventType = "answer_chunk"
	EventComplete EventType = "answer_complete"
	EventError    EventType = "error"
)

// Source is the article attribution carried on the completion event.
type Source struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary,omitempty"`
}

// Event is one frame of the answer stream. Exactly one of the payload
// fields is meaningful depending on Type.
type Event struct {
	Type      EventType
	Chunk     string
	Sources   []Source
	SessionID string
	Err       string
}

// Terminal reports whether no further events may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Wire payload shapes, one per event type.

type chunkPayload struct {
	Chunk string `json:"chunk"`
}

type completePayload struct {
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

type errorPayload struct {
	Error string `json:"error"`
}
