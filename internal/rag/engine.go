// Package rag answers questions by retrieving relevant articles from
// the vector index and streaming a source-attributed generation over
// them. Each request moves through moderation, query reformulation,
// retrieval and generation, and ends in exactly one terminal event.
package rag

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/coinwire/coinwire/internal/llm"
	"github.com/coinwire/coinwire/internal/store"
	"github.com/coinwire/coinwire/internal/stream"
	"github.com/coinwire/coinwire/internal/telemetry"
)

// Chat roles accepted in request history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultTopK = 5

// ChatTurn is one prior exchange in the conversation, supplied by the
// caller. History is trusted as given and never reordered.
type ChatTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Request is a question with optional session continuity.
type Request struct {
	Question  string     `json:"question"`
	SessionID string     `json:"session_id,omitempty"`
	History   []ChatTurn `json:"chat_history,omitempty"`
}

// Embedder is the slice of the embedding gateway the engine needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine drives the question-answering pipeline. It is stateless per
// request and safe for concurrent use.
type Engine struct {
	embedder  Embedder
	store     store.ArticleStore
	generator llm.StreamingProvider
	moderator *Moderator
	topK      int
	logger    *log.Logger
}

// NewEngine builds an Engine. topK <= 0 selects the default of 5;
// moderator nil selects the default blocked-pattern list.
func NewEngine(embedder Embedder, st store.ArticleStore, generator llm.StreamingProvider, moderator *Moderator, topK int, logger *log.Logger) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}
	if moderator == nil {
		moderator = NewModerator()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &Engine{
		embedder:  embedder,
		store:     st,
		generator: generator,
		moderator: moderator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask runs the pipeline and returns the event stream for the request.
// The channel delivers zero or more chunk events followed by exactly one
// terminal event, then closes. Cancelling ctx stops the stream promptly:
// no further events follow, terminal or otherwise, and the channel
// closes.
func (e *Engine) Ask(ctx context.Context, req Request) <-chan stream.Event {
	events := make(chan stream.Event)
	go func() {
		defer close(events)
		started := time.Now()
		state := e.run(ctx, req, events)
		telemetry.AskRequests.WithLabelValues(state).Inc()
		telemetry.AskDuration.Observe(time.Since(started).Seconds())
	}()
	return events
}

// run executes the pipeline and returns the terminal state name.
func (e *Engine) run(ctx context.Context, req Request, events chan<- stream.Event) string {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if req.Question == "" {
		e.emit(ctx, events, stream.Event{Type: stream.EventError, Err: "question is required"})
		return "errored"
	}
	if e.moderator.Rejects(req.Question) {
		e.logger.Printf("session %s: question rejected by moderation", sessionID)
		e.emit(ctx, events, stream.Event{Type: stream.EventError, Err: moderationMessage})
		return "moderated"
	}

	query := reformulateQuery(req.Question, req.History)

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		if ctx.Err() != nil {
			return "cancelled"
		}
		e.logger.Printf("session %s: query embedding failed: %v", sessionID, err)
		e.emit(ctx, events, stream.Event{Type: stream.EventError, Err: "failed to embed question"})
		return "errored"
	}

	results, err := e.store.Query(ctx, vectors[0], e.topK)
	if err != nil {
		if ctx.Err() != nil {
			return "cancelled"
		}
		e.logger.Printf("session %s: retrieval failed: %v", sessionID, err)
		e.emit(ctx, events, stream.Event{Type: stream.EventError, Err: "failed to retrieve articles"})
		return "errored"
	}

	messages := buildMessages(req.Question, req.History, results)
	err = e.generator.GenerateStream(ctx, messages, func(delta string) error {
		if !e.emit(ctx, events, stream.Event{Type: stream.EventChunk, Chunk: delta}) {
			return ctx.Err()
		}
		telemetry.ChunksStreamed.Inc()
		return nil
	})
	if ctx.Err() != nil {
		// Client gone: stop without a terminal event.
		return "cancelled"
	}
	if err != nil {
		e.logger.Printf("session %s: generation failed: %v", sessionID, err)
		e.emit(ctx, events, stream.Event{Type: stream.EventError, Err: "answer generation failed"})
		return "errored"
	}

	e.emit(ctx, events, stream.Event{
		Type:      stream.EventComplete,
		Sources:   sourcesFrom(results),
		SessionID: sessionID,
	})
	return "completed"
}

// emit sends an event unless the request is already cancelled. It
// reports whether the event was delivered.
func (e *Engine) emit(ctx context.Context, events chan<- stream.Event, ev stream.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}

func sourcesFrom(results []store.ScoredArticle) []stream.Source {
	sources := make([]stream.Source, len(results))
	for i, r := range results {
		sources[i] = stream.Source{
			Title:       r.Title,
			URL:         r.URL,
			Source:      r.Source,
			PublishedAt: r.PublishedAt,
			Summary:     r.Summary,
		}
	}
	return sources
}
