// Package llm streams answer text from a chat-completion backend.
package llm

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamingProvider generates an answer incrementally. onDelta is called
// once per text fragment, in order; returning an error from onDelta
// aborts the stream.
type StreamingProvider interface {
	GenerateStream(ctx context.Context, messages []Message, onDelta func(delta string) error) error
}
