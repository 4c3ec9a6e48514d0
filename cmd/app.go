package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/export"
	"github.com/pders01/trace/internal/generation"
	"github.com/pders01/trace/internal/llm/provider"
	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/ollama"
	"github.com/pders01/trace/internal/retrieval"
	"github.com/pders01/trace/internal/review"
	"github.com/pders01/trace/internal/store"
	"github.com/pders01/trace/internal/syncer"
	"github.com/pders01/trace/internal/tui"
	"github.com/pders01/trace/internal/workflow"
)

// Backends are package variables so tests can run without a model server.
var (
	newEmbedder = func(cfg *config.Config) (embeddings.Embedder, error) {
		c, err := ollama.NewClient(cfg.Ollama.URL, cfg.Embeddings.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	completerBackend provider.BuildFunc = provider.Backend
)

// app holds what every command that touches the knowledge base needs.
// store is nil when the index could not be opened.
type app struct {
	cfg      *config.Config
	store    *store.Store
	embedder embeddings.Embedder
	factory  *provider.Factory
	logger   *slog.Logger
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	logger := slog.Default()
	a := &app{
		cfg:      cfg,
		embedder: emb,
		factory:  provider.NewFactory(cfg, logger).WithBuilder(completerBackend),
		logger:   logger,
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Warn("knowledge store unavailable", "path", cfg.Store.Path, "error", err)
		return a, nil
	}
	a.store = st
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close knowledge store", "error", err)
		}
	}
}

// requireStore is for commands that cannot degrade without an index
func (a *app) requireStore() error {
	if a.store == nil {
		return fmt.Errorf("%w: cannot open %s", store.ErrIndexUnavailable, a.cfg.Store.Path)
	}
	return nil
}

// confirmer picks how removals are approved. --yes wins, then the
// configured mode; interactive mode prompts on the terminal.
func (a *app) confirmer(yes bool) syncer.Confirmer {
	switch {
	case yes:
		return syncer.AutoConfirm
	case a.cfg.Sync.Confirm == config.ConfirmInteractive:
		return tui.NewConfirmer(os.Stdin, os.Stderr)
	default:
		return nil
	}
}

func (a *app) syncEngine(yes bool) (*syncer.Engine, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return syncer.New(a.cfg, a.store, a.embedder, a.confirmer(yes))
}

func (a *app) searcher() retrieval.Searcher {
	if a.store == nil {
		return offlineIndex{}
	}
	return a.store
}

func (a *app) retrieval(ctx context.Context) (*retrieval.Agent, error) {
	archivist, err := a.factory.Completer(ctx, config.RoleArchivist)
	if err != nil {
		return nil, err
	}
	return retrieval.New(a.cfg, a.searcher(), a.embedder, archivist)
}

// orchestrator wires the full workflow. Sync is skipped when the index is
// unavailable; retrieval then degrades on its own.
func (a *app) orchestrator(ctx context.Context, yes bool) (*workflow.Orchestrator, error) {
	research, err := a.retrieval(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := a.factory.Completer(ctx, config.RoleManager)
	if err != nil {
		return nil, err
	}
	author, err := a.factory.Completer(ctx, config.RoleAuthor)
	if err != nil {
		return nil, err
	}
	auditor, err := a.factory.Completer(ctx, config.RoleAuditor)
	if err != nil {
		return nil, err
	}

	var uploader export.Uploader
	if a.cfg.PublishEnabled() {
		u, err := export.NewS3Uploader(a.cfg.Publish)
		if err != nil {
			return nil, err
		}
		uploader = u
	}

	orch := &workflow.Orchestrator{
		Config:    a.cfg,
		Retrieval: research,
		Manager:   manager,
		Generator: generation.New(author),
		Reviewer:  review.New(auditor),
		Exporter:  export.New(a.cfg, uploader),
		Logger:    a.logger,
	}
	if a.store != nil {
		engine, err := a.syncEngine(yes)
		if err != nil {
			return nil, err
		}
		orch.Syncer = engine
	}
	return orch, nil
}

// offlineIndex stands in for a knowledge store that could not be opened
type offlineIndex struct{}

func (offlineIndex) Query(ctx context.Context, vec []float64, k int) ([]models.ScoredRecord, error) {
	return nil, fmt.Errorf("%w: store not open", store.ErrIndexUnavailable)
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
