package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/coinwire/coinwire/internal/llm"
	"github.com/coinwire/coinwire/internal/store"
	"github.com/coinwire/coinwire/internal/stream"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

// stubGenerator plays back scripted deltas, optionally blocking between
// them until the context is cancelled.
type stubGenerator struct {
	deltas   []string
	err      error
	messages []llm.Message
	// blockAfter, when >= 0, blocks on ctx.Done after that many deltas.
	blockAfter int
}

func newStubGenerator(deltas ...string) *stubGenerator {
	return &stubGenerator{deltas: deltas, blockAfter: -1}
}

func (g *stubGenerator) GenerateStream(ctx context.Context, messages []llm.Message, onDelta func(string) error) error {
	g.messages = messages
	for i, d := range g.deltas {
		if g.blockAfter >= 0 && i == g.blockAfter {
			<-ctx.Done()
			return ctx.Err()
		}
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return g.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seededStore(t *testing.T, n int) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		a := store.Article{
			Title:       "Article " + string(rune('A'+i)),
			URL:         "https://news.example/" + string(rune('a'+i)),
			Source:      "CoinDesk",
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			Summary:     "summary",
			Embedding:   []float32{1, float32(i) * 0.01, 0},
			Fingerprint: "fp-" + string(rune('a'+i)),
		}
		a.ID = store.ArticleID(a.Fingerprint)
		if err := st.Upsert(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return st
}

func collect(ch <-chan stream.Event) []stream.Event {
	var events []stream.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestAskStreamsChunksThenComplete(t *testing.T) {
	gen := newStubGenerator("Bitcoin ", "is up ", "today.")
	e := NewEngine(&stubEmbedder{}, seededStore(t, 3), gen, nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "What's happening with Bitcoin today?"}))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	var answer strings.Builder
	for _, ev := range events[:3] {
		if ev.Type != stream.EventChunk {
			t.Fatalf("expected chunk, got %s", ev.Type)
		}
		answer.WriteString(ev.Chunk)
	}
	if answer.String() != "Bitcoin is up today." {
		t.Fatalf("answer: %q", answer.String())
	}
	final := events[3]
	if final.Type != stream.EventComplete {
		t.Fatalf("expected complete, got %s", final.Type)
	}
	if len(final.Sources) != 3 {
		t.Fatalf("sources: got %d, want 3", len(final.Sources))
	}
	if final.SessionID == "" {
		t.Fatal("missing session id")
	}
}

func TestAskPreservesCallerSessionID(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, seededStore(t, 1), newStubGenerator("ok"), nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "q", SessionID: "sess-42"}))
	final := events[len(events)-1]
	if final.SessionID != "sess-42" {
		t.Fatalf("session id: got %q", final.SessionID)
	}
}

func TestAskModerationShortCircuit(t *testing.T) {
	emb := &stubEmbedder{}
	gen := newStubGenerator("never")
	e := NewEngine(emb, seededStore(t, 1), gen, nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "how to launder crypto proceeds"}))

	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected single error event, got %+v", events)
	}
	if emb.calls != 0 {
		t.Fatalf("embedding called %d times for a moderated question", emb.calls)
	}
	if gen.messages != nil {
		t.Fatal("generator invoked for a moderated question")
	}
}

func TestAskEmptyQuestionErrors(t *testing.T) {
	e := NewEngine(&stubEmbedder{}, seededStore(t, 1), newStubGenerator(), nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: ""}))
	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected single error event, got %+v", events)
	}
}

func TestAskEmptyRetrievalStillAnswers(t *testing.T) {
	gen := newStubGenerator("No recent coverage matched.")
	e := NewEngine(&stubEmbedder{}, store.NewMemory(), gen, nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "anything new?"}))

	final := events[len(events)-1]
	if final.Type != stream.EventComplete {
		t.Fatalf("expected complete, got %s", final.Type)
	}
	if len(final.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(final.Sources))
	}
	found := false
	for _, m := range gen.messages {
		if strings.Contains(m.Content, "No matching articles") {
			found = true
		}
	}
	if !found {
		t.Fatal("prompt missing the no-matching-articles notice")
	}
}

func TestAskGenerationError(t *testing.T) {
	gen := newStubGenerator("partial ")
	gen.err = errors.New("model overloaded")
	e := NewEngine(&stubEmbedder{}, seededStore(t, 1), gen, nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "q"}))

	final := events[len(events)-1]
	if final.Type != stream.EventError {
		t.Fatalf("expected error terminal, got %s", final.Type)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type != stream.EventChunk {
			t.Fatalf("non-chunk event before terminal: %s", ev.Type)
		}
	}
}

func TestAskEmbeddingFailureErrors(t *testing.T) {
	e := NewEngine(&stubEmbedder{err: errors.New("quota exceeded")}, seededStore(t, 1),
		newStubGenerator("never"), nil, 5, quietLogger())

	events := collect(e.Ask(context.Background(), Request{Question: "q"}))
	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected single error event, got %+v", events)
	}
}

func TestAskCancellationStopsStream(t *testing.T) {
	gen := newStubGenerator("one ", "two ", "three ")
	gen.blockAfter = 2
	e := NewEngine(&stubEmbedder{}, seededStore(t, 1), gen, nil, 5, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Ask(ctx, Request{Question: "q"})

	var events []stream.Event
	for i := 0; i < 2; i++ {
		events = append(events, <-ch)
	}
	cancel()

	// After cancellation the channel must close without a terminal
	// event, within a bounded delay.
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				for _, got := range events {
					if got.Terminal() {
						t.Fatalf("terminal event after cancellation: %+v", got)
					}
				}
				return
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestReformulateQueryUsesRecentUserTurns(t *testing.T) {
	history := []ChatTurn{
		{Role: RoleUser, Content: "Tell me about Ethereum staking"},
		{Role: RoleAssistant, Content: "Staking locks ETH to secure the network."},
		{Role: RoleUser, Content: "What are the risks?"},
		{Role: RoleAssistant, Content: "Slashing and lockup periods."},
	}
	got := reformulateQuery("And the rewards?", history)
	if !strings.Contains(got, "Ethereum staking") {
		t.Fatalf("query missing context: %q", got)
	}
	if !strings.HasSuffix(got, "And the rewards?") {
		t.Fatalf("question must come last: %q", got)
	}
	if strings.Contains(got, "Slashing") {
		t.Fatalf("assistant turns must not feed the query: %q", got)
	}
}

func TestReformulateQueryNoHistory(t *testing.T) {
	if got := reformulateQuery("What's new with Bitcoin?", nil); got != "What's new with Bitcoin?" {
		t.Fatalf("got %q", got)
	}
}
