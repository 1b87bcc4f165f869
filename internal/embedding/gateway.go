// Package embedding turns article text into dense vectors through a
// primary provider with an automatic fallback.
package embedding

import (
	"context"
	"fmt"
	"log"
)

// Provider produces one embedding vector per input text, in order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Error reports which provider a failed embedding call ended on.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const defaultBatchSize = 8

// Gateway batches embedding requests and routes them to the primary
// provider, retrying once before switching to the fallback for the
// remainder of the call.
type Gateway struct {
	primary    Provider
	fallback   Provider
	batchSize  int
	dimensions int
	logger     *log.Logger
}

// NewGateway builds a Gateway. fallback may be nil. batchSize <= 0
// selects the default; dimensions > 0 enables per-vector validation.
func NewGateway(primary, fallback Provider, batchSize, dimensions int, logger *log.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBED] ", log.LstdFlags)
	}
	return &Gateway{
		primary:    primary,
		fallback:   fallback,
		batchSize:  batchSize,
		dimensions: dimensions,
		logger:     logger,
	}
}

// BatchSize returns the per-provider-call batch size.
func (g *Gateway) BatchSize() int { return g.batchSize }

// Embed returns one vector per input text, in input order. Texts are
// sent to the provider in batches of at most BatchSize. Once a batch
// falls back, the remaining batches of the same call stay on the
// fallback provider.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	onFallback := false
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, fellBack, err := g.embedBatch(ctx, texts[start:end], onFallback)
		if err != nil {
			return nil, err
		}
		onFallback = onFallback || fellBack
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string, onFallback bool) ([][]float32, bool, error) {
	if !onFallback {
		vecs, err := g.primary.Embed(ctx, texts)
		if err == nil {
			if verr := g.validate(texts, vecs); verr == nil {
				return vecs, false, nil
			} else {
				err = verr
			}
		}
		g.logger.Printf("primary %s failed, retrying: %v", g.primary.Name(), err)

		vecs, err = g.primary.Embed(ctx, texts)
		if err == nil {
			if verr := g.validate(texts, vecs); verr == nil {
				return vecs, false, nil
			} else {
				err = verr
			}
		}
		if g.fallback == nil {
			return nil, false, &Error{Provider: g.primary.Name(), Err: err}
		}
		g.logger.Printf("primary %s failed twice, switching to %s: %v", g.primary.Name(), g.fallback.Name(), err)
	}

	if g.fallback == nil {
		return nil, false, &Error{Provider: g.primary.Name(), Err: fmt.Errorf("no fallback configured")}
	}
	vecs, err := g.fallback.Embed(ctx, texts)
	if err == nil {
		err = g.validate(texts, vecs)
	}
	if err != nil {
		return nil, true, &Error{Provider: g.fallback.Name(), Err: err}
	}
	return vecs, true, nil
}

func (g *Gateway) validate(texts []string, vecs [][]float32) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))
	}
	if g.dimensions > 0 {
		for i, v := range vecs {
			if len(v) != g.dimensions {
				return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), g.dimensions)
			}
		}
	}
	return nil
}
