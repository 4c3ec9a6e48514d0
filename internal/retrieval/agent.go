// Package retrieval answers questions from the knowledge store and detects
// scenarios that an existing test case already covers.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/store"
)

const (
	// NotFound is returned verbatim when no chunk matches; never a made-up answer
	NotFound = "I cannot find that information in the available documents."
	// Unavailable is returned when the knowledge store cannot be searched
	Unavailable = "The knowledge base is unavailable, so no documents could be searched."
)

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query is empty")

// Searcher is the read side of the knowledge store
type Searcher interface {
	Query(ctx context.Context, vec []float64, k int) ([]models.ScoredRecord, error)
}

// Agent wraps the knowledge store for natural-language lookups
type Agent struct {
	Store     Searcher
	Embedder  embeddings.Embedder
	Completer llm.Completer
	TopK      int
	Guard     Guard
	Logger    *slog.Logger

	cache *lru.Cache[string, []float64]
}

// New builds an agent from configuration. completer answers as the
// archivist role.
func New(cfg *config.Config, searcher Searcher, emb embeddings.Embedder, completer llm.Completer) (*Agent, error) {
	a := &Agent{
		Store:     searcher,
		Embedder:  embeddings.WithTimeout(emb, cfg.LLM.Timeout),
		Completer: completer,
		TopK:      cfg.Retrieval.TopK,
		Guard: Guard{
			MaxIDLength:          cfg.Duplicate.MaxIDLength,
			RejectNumericLeading: cfg.Duplicate.RejectNumericLeading,
			RequireInContext:     cfg.Duplicate.RequireInContext,
		},
		Logger: slog.Default(),
	}
	if cfg.Retrieval.CacheSize > 0 {
		cache, err := lru.New[string, []float64](cfg.Retrieval.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create query cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// Search embeds query and returns the top-k records. Store failures surface
// as store.ErrIndexUnavailable.
func (a *Agent) Search(ctx context.Context, query string, k int) ([]models.ScoredRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = a.TopK
	}

	vec, err := a.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return a.Store.Query(ctx, vec, k)
}

// Ask returns the top-k chunk texts separated by blank lines, NotFound when
// nothing matches, or Unavailable when the store cannot be searched.
func (a *Agent) Ask(ctx context.Context, query string) (string, error) {
	hits, err := a.Search(ctx, query, a.TopK)
	if err != nil {
		if errors.Is(err, store.ErrIndexUnavailable) {
			a.log().Warn("knowledge store unavailable", "error", err)
			return Unavailable, nil
		}
		return "", err
	}
	if len(hits) == 0 {
		return NotFound, nil
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// Answer is the research route: a completion grounded only on retrieved
// context. The sentinels from Ask pass through unchanged.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	found, err := a.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	if found == NotFound || found == Unavailable {
		return found, nil
	}

	out, err := a.Completer.Complete(ctx, llm.Request{
		System: answerSystemPrompt,
		Prompt: fmt.Sprintf("<context>\n%s\n</context>\n\nQuestion: %s", found, question),
	})
	if err != nil {
		return "", err
	}
	return llm.StripFences(out), nil
}

func (a *Agent) embed(ctx context.Context, query string) ([]float64, error) {
	if a.cache != nil {
		if vec, ok := a.cache.Get(query); ok {
			return vec, nil
		}
	}
	vec, err := a.Embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		// without query vectors the store cannot be searched
		return nil, fmt.Errorf("%w: %w", store.ErrIndexUnavailable, err)
	}
	if a.cache != nil {
		a.cache.Add(query, vec)
	}
	return vec, nil
}

func (a *Agent) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

const answerSystemPrompt = `You are the Archivist, a technical researcher.
Answer the question using ONLY the provided context.
If the answer is not in the context, reply exactly: "` + NotFound + `"
Do not make up answers.`
