package embedding

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
)

// scriptedProvider fails its first `fails` calls and records every
// batch it receives.
type scriptedProvider struct {
	name  string
	dims  int
	fails int
	calls int
	seen  [][]string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.seen = append(p.seen, append([]string(nil), texts...))
	if p.fails > 0 {
		p.fails--
		return nil, errors.New("provider unavailable")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, p.dims)
		vecs[i][0] = float32(i + 1)
	}
	return vecs, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestGatewayBatchingPreservesOrder(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dims: 4}
	g := NewGateway(primary, nil, 2, 4, quietLogger())

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := g.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	if primary.calls != 3 {
		t.Fatalf("expected 3 batches of size <=2, got %d calls", primary.calls)
	}
	if len(primary.seen[0]) != 2 || len(primary.seen[1]) != 2 || len(primary.seen[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %v", primary.seen)
	}
	// First element of each batch gets 1, second gets 2.
	want := []float32{1, 2, 1, 2, 1}
	for i, v := range vecs {
		if v[0] != want[i] {
			t.Fatalf("vector %d out of order: got %v want %v", i, v[0], want[i])
		}
	}
}

func TestGatewayRetriesPrimaryOnceThenFallsBack(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dims: 4, fails: 2}
	fallback := &scriptedProvider{name: "fallback", dims: 4}
	g := NewGateway(primary, fallback, 8, 4, quietLogger())

	vecs, err := g.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if primary.calls != 2 {
		t.Fatalf("primary called %d times, want 2 (initial + one retry)", primary.calls)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback called %d times, want 1", fallback.calls)
	}
}

func TestGatewayFallbackStickyWithinCall(t *testing.T) {
	// Primary fails both attempts on the first batch; all later batches
	// of the same call must go straight to the fallback.
	primary := &scriptedProvider{name: "primary", dims: 4, fails: 2}
	fallback := &scriptedProvider{name: "fallback", dims: 4}
	g := NewGateway(primary, fallback, 1, 4, quietLogger())

	if _, err := g.Embed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if primary.calls != 2 {
		t.Fatalf("primary called %d times, want 2", primary.calls)
	}
	if fallback.calls != 3 {
		t.Fatalf("fallback called %d times, want 3 (one per batch)", fallback.calls)
	}
}

func TestGatewayBothProvidersFail(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dims: 4, fails: 10}
	fallback := &scriptedProvider{name: "fallback", dims: 4, fails: 10}
	g := NewGateway(primary, fallback, 8, 4, quietLogger())

	_, err := g.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Provider != "fallback" {
		t.Fatalf("error should name the last provider tried, got %q", perr.Provider)
	}
}

func TestGatewayRejectsWrongDimensions(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dims: 3}
	g := NewGateway(primary, nil, 8, 4, quietLogger())

	if _, err := g.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestGatewayEmptyInput(t *testing.T) {
	primary := &scriptedProvider{name: "primary", dims: 4}
	g := NewGateway(primary, nil, 8, 4, quietLogger())

	vecs, err := g.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs != nil {
		t.Fatalf("expected nil result, got %v", vecs)
	}
	if primary.calls != 0 {
		t.Fatalf("provider should not be called for empty input")
	}
}
