package embeddings

import (
	"context"
	"fmt"
	"time"
)

// Embedder produces the vector for a piece of text
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// WithTimeout bounds every GenerateEmbedding call by d. The call returns once
// the deadline passes even if next ignores its context. A non-positive d
// returns next unchanged.
func WithTimeout(next Embedder, d time.Duration) Embedder {
	if d <= 0 || next == nil {
		return next
	}
	if t, ok := next.(*timeout); ok && t.d <= d {
		return t
	}
	return &timeout{next: next, d: d}
}

type timeout struct {
	next Embedder
	d    time.Duration
}

type embedResult struct {
	vec []float64
	err error
}

func (t *timeout) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan embedResult, 1)
	go func() {
		vec, err := t.next.GenerateEmbedding(ctx, text)
		done <- embedResult{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("embedding timed out after %s: %w", t.d, ctx.Err())
	}
}
