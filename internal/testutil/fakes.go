package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pders01/trace/internal/llm"
)

// FakeDimensions is the vector size produced by FakeEmbedder
const FakeDimensions = 64

// FakeEmbedder hashes words into a fixed-size vector so texts sharing words
// are similar. Texts containing FailMarker fail to embed.
type FakeEmbedder struct {
	FailMarker string

	mu    sync.Mutex
	calls int
	seen  []string
}

// GenerateEmbedding implements embeddings.Embedder
func (f *FakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls++
	f.seen = append(f.seen, text)
	f.mu.Unlock()

	if f.FailMarker != "" && strings.Contains(text, f.FailMarker) {
		return nil, errors.New("embedding service rejected input")
	}
	return Vector(text), nil
}

// Calls returns how many texts were embedded
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SlowEmbedder returns Vector(text) after Delay. With IgnoreContext set it
// keeps sleeping through cancellation, like a hung server.
type SlowEmbedder struct {
	Delay         time.Duration
	IgnoreContext bool
}

// GenerateEmbedding implements embeddings.Embedder
func (s *SlowEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if s.IgnoreContext {
		time.Sleep(s.Delay)
		return Vector(text), nil
	}
	select {
	case <-time.After(s.Delay):
		return Vector(text), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Vector is the deterministic embedding FakeEmbedder returns for text
func Vector(text string) []float64 {
	vec := make([]float64, FakeDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%FakeDimensions]++
	}
	// keep the vector non-zero for texts without words
	vec[0] += 0.01
	return vec
}

// Reply is one scripted completion outcome
type Reply struct {
	Text string
	Err  error
}

// ScriptedCompleter returns queued replies in order and records every
// request. Once the queue is empty it repeats Fallback.
type ScriptedCompleter struct {
	Model    string
	Replies  []Reply
	Fallback Reply

	mu       sync.Mutex
	requests []llm.Request
}

// Script builds a completer that answers with texts in order
func Script(texts ...string) *ScriptedCompleter {
	c := &ScriptedCompleter{Model: "scripted"}
	for _, t := range texts {
		c.Replies = append(c.Replies, Reply{Text: t})
	}
	return c
}

// Then appends a reply
func (c *ScriptedCompleter) Then(text string, err error) *ScriptedCompleter {
	c.Replies = append(c.Replies, Reply{Text: text, Err: err})
	return c
}

func (c *ScriptedCompleter) Name() string {
	if c.Model == "" {
		return "scripted"
	}
	return c.Model
}

// Complete implements llm.Completer
func (c *ScriptedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	r := c.Fallback
	if len(c.Replies) > 0 {
		r = c.Replies[0]
		c.Replies = c.Replies[1:]
	}
	return r.Text, r.Err
}

// Requests returns every request seen so far
func (c *ScriptedCompleter) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns the number of Complete calls
func (c *ScriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
