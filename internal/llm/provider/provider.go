// Package provider builds the completer behind each orchestration role.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/gemini"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/ollama"
)

// BuildFunc creates the raw backend client for a model
type BuildFunc func(ctx context.Context, cfg *config.Config, model string) (llm.Completer, error)

// Factory turns role names into fully wrapped completers
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
	build  BuildFunc
}

// NewFactory returns a factory that selects the backend from cfg.Provider
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger, build: Backend}
}

// WithBuilder replaces the backend constructor, mostly for tests
func (f *Factory) WithBuilder(b BuildFunc) *Factory {
	f.build = b
	return f
}

// Backend constructs the client named by cfg.Provider
func Backend(ctx context.Context, cfg *config.Config, model string) (llm.Completer, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		c, err := ollama.NewClient(cfg.Ollama.URL, model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// Completer returns the completer for role. Unknown roles are configuration
// integrity errors.
func (f *Factory) Completer(ctx context.Context, role string) (llm.Completer, error) {
	rc, err := f.cfg.ModelFor(role)
	if err != nil {
		return nil, err
	}

	base, err := f.build(ctx, f.cfg, rc.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s completer: %w", role, err)
	}

	return llm.Chain(base,
		llm.WithLogging(f.logger, role),
		llm.Retry(f.cfg.LLM.Retries, 500*time.Millisecond),
		llm.WithTimeout(f.cfg.LLM.Timeout),
		llm.WithTemperature(rc.Temperature),
	), nil
}
