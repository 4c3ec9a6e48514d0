// Package syncer keeps the knowledge store in step with the corpus on disk,
// re-indexing only sources whose fingerprint changed.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/pders01/trace/internal/chunker"
	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/corpus"
	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/store"
	"github.com/pders01/trace/internal/syncstate"
)

// LeaseName is the advisory lock guarding the sync state
const LeaseName = "sync"

// Failure stages reported in SyncReport.Failed
const (
	StageLoad   = "load"
	StageEmbed  = "embed"
	StageStore  = "store"
	StageDelete = "delete"
)

// ErrLeaseLost stops a run whose sync lock could not be renewed
var ErrLeaseLost = errors.New("sync lock lost")

var recordNamespace = uuid.MustParse("6f1c9a52-3c1e-4b7e-9d4a-1d2f3b4c5d6e")

// Index is the part of the knowledge store the engine writes to
type Index interface {
	ReplaceSource(ctx context.Context, sourceID string, records []models.IndexRecord) error
	DeleteBySource(ctx context.Context, sourceID string) (int, error)
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) error
	WaitLease(ctx context.Context, name, owner string, ttl, wait, poll time.Duration) error
	ReleaseLease(ctx context.Context, name, owner string) error
}

// SourceError is a per-source failure; it never fails the whole run
type SourceError struct {
	SourceID string
	Stage    string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.SourceID, e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Engine runs incremental syncs
type Engine struct {
	Scanner   *corpus.Scanner
	Store     Index
	StatePath string
	Splitter  *chunker.Splitter
	Embedder  embeddings.Embedder
	Confirmer Confirmer
	Workers   int
	LeaseTTL  time.Duration
	LeaseWait time.Duration
	Logger    *slog.Logger

	owner string
	now   func() time.Time
}

// New wires an engine from configuration
func New(cfg *config.Config, idx Index, emb embeddings.Embedder, confirm Confirmer) (*Engine, error) {
	splitter, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	if confirm == nil {
		confirm = confirmerFor(cfg.Sync.Confirm)
	}
	return &Engine{
		Scanner:   corpus.NewScanner(cfg.Corpus.Roots, cfg.Corpus.Extensions, cfg.Sync.Fingerprint),
		Store:     idx,
		StatePath: cfg.Sync.StateFile,
		Splitter:  splitter,
		Embedder:  embeddings.WithTimeout(emb, cfg.LLM.Timeout),
		Confirmer: confirm,
		Workers:   cfg.Sync.EmbedWorkers,
		LeaseTTL:  cfg.Sync.LockTTL,
		LeaseWait: cfg.Sync.LockWait,
		Logger:    slog.Default(),
	}, nil
}

func confirmerFor(mode string) Confirmer {
	if mode == config.ConfirmAuto {
		return AutoConfirm
	}
	// interactive needs a terminal the caller supplies
	return NeverConfirm
}

// Synchronize brings the knowledge store in line with the corpus. The sync
// state is written last and only records sources whose store mutation
// completed. The lease is renewed while the run lasts; losing it stops the
// run after the source in progress.
func (e *Engine) Synchronize(parent context.Context) (models.SyncReport, error) {
	start := e.clock()()
	var report models.SyncReport
	log := e.log()

	owner := e.ownerID()
	if err := e.Store.WaitLease(parent, LeaseName, owner, e.LeaseTTL, e.LeaseWait, 0); err != nil {
		return report, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer func() {
		if err := e.Store.ReleaseLease(context.WithoutCancel(parent), LeaseName, owner); err != nil {
			log.Warn("failed to release sync lock", "error", err)
		}
	}()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	stopRenewing := e.keepLease(ctx, owner, cancel)
	defer stopRenewing()

	scan, err := e.Scanner.Scan(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to scan corpus: %w", err)
	}
	report.MissingRoots = scan.MissingRoots()

	if len(scan.Available()) == 0 {
		log.Warn("no corpus root available, skipping sync", "roots", report.MissingRoots)
		report.NoOp = true
		report.Duration = e.clock()().Sub(start)
		return report, nil
	}

	saved, err := syncstate.Load(e.StatePath)
	if err != nil {
		return report, err
	}

	delta := ComputeDelta(scan.Files, saved.Sources, scan.Protects)
	report.Unchanged = delta.Unchanged
	if delta.Empty() {
		log.Debug("corpus unchanged", "sources", delta.Unchanged)
		report.NoOp = true
		report.Duration = e.clock()().Sub(start)
		return report, nil
	}

	next := saved.Clone()
	changed := false

	if len(delta.Removed) > 0 {
		ok, err := e.Confirmer.Confirm(ctx, delta.Removed)
		if err != nil {
			return report, fmt.Errorf("failed to confirm removals: %w", err)
		}
		if !ok {
			log.Info("removal declined, keeping sources indexed", "count", len(delta.Removed))
			report.Skipped = len(delta.Removed)
		} else {
			for _, id := range delta.Removed {
				n, err := e.Store.DeleteBySource(ctx, id)
				if err != nil {
					e.fail(&report, &SourceError{SourceID: id, Stage: StageDelete, Err: err})
					continue
				}
				log.Debug("removed source", "source", id, "records", n)
				delete(next.Sources, id)
				report.Removed++
				changed = true
			}
		}
	}

	isNew := make(map[string]bool, len(delta.Added))
	for _, id := range delta.Added {
		isNew[id] = true
	}

	var runErr error
	for _, id := range delta.Pending() {
		if ctx.Err() != nil {
			runErr = context.Cause(ctx)
			break
		}
		if err := e.Store.AcquireLease(ctx, LeaseName, owner, e.LeaseTTL); err != nil {
			runErr = fmt.Errorf("%w: %w", ErrLeaseLost, err)
			break
		}
		fp := scan.Files[id]
		n, err := e.indexSource(ctx, id, fp)
		if err != nil {
			var se *SourceError
			if errors.As(err, &se) {
				e.fail(&report, se)
				continue
			}
			runErr = context.Cause(ctx)
			if runErr == nil {
				runErr = err
			}
			break
		}
		next.Sources[id] = fp
		report.Chunks += n
		changed = true
		if isNew[id] {
			report.Added++
		} else {
			report.Updated++
		}
		log.Debug("indexed source", "source", id, "chunks", n)
	}

	if changed {
		next.UpdatedAt = e.clock()().UTC()
		if err := syncstate.Save(e.StatePath, next); err != nil {
			return report, err
		}
	}

	report.Duration = e.clock()().Sub(start)
	if runErr != nil {
		return report, runErr
	}
	log.Info("sync complete",
		"added", report.Added, "updated", report.Updated, "removed", report.Removed,
		"skipped", report.Skipped, "failed", len(report.Failed), "chunks", report.Chunks)
	return report, nil
}

// indexSource loads, chunks, embeds and stores one source. Per-source
// problems come back as *SourceError; context cancellation is returned as is.
func (e *Engine) indexSource(ctx context.Context, id, fingerprint string) (int, error) {
	doc, err := corpus.Load(id, fingerprint)
	if err != nil {
		return 0, &SourceError{SourceID: id, Stage: StageLoad, Err: err}
	}

	chunks := e.Splitter.Split(doc.Content)
	records := make([]models.IndexRecord, len(chunks))

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i, text := range chunks {
		p.Go(func(ctx context.Context) error {
			vec, err := e.Embedder.GenerateEmbedding(ctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			records[i] = models.IndexRecord{
				ID:         recordID(id, fingerprint, i),
				SourceID:   id,
				ChunkIndex: i,
				Text:       text,
				Embedding:  vec,
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &SourceError{SourceID: id, Stage: StageEmbed, Err: err}
	}

	if err := e.Store.ReplaceSource(ctx, id, records); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &SourceError{SourceID: id, Stage: StageStore, Err: err}
	}
	return len(records), nil
}

// keepLease renews the lease every third of its TTL until stop is called.
// A failed renewal cancels ctx with ErrLeaseLost as the cause.
func (e *Engine) keepLease(ctx context.Context, owner string, lost context.CancelCauseFunc) (stop func()) {
	interval := e.LeaseTTL / 3
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg conc.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Store.AcquireLease(ctx, LeaseName, owner, e.LeaseTTL); err != nil {
					if ctx.Err() != nil {
						return
					}
					e.log().Warn("sync lock lost", "error", err)
					lost(fmt.Errorf("%w: %w", ErrLeaseLost, err))
					return
				}
			}
		}
	})
	return func() {
		close(done)
		wg.Wait()
	}
}

func (e *Engine) fail(report *models.SyncReport, se *SourceError) {
	e.log().Warn("source failed", "source", se.SourceID, "stage", se.Stage, "error", se.Err)
	report.Failed = append(report.Failed, models.SourceFailure{
		SourceID: se.SourceID,
		Stage:    se.Stage,
		Error:    se.Err.Error(),
	})
}

func recordID(sourceID, fingerprint string, chunk int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s\x00%s\x00%d", sourceID, fingerprint, chunk))).String()
}

func (e *Engine) ownerID() string {
	if e.owner == "" {
		e.owner = uuid.NewString()
	}
	return e.owner
}

func (e *Engine) clock() func() time.Time {
	if e.now == nil {
		return time.Now
	}
	return e.now
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

var _ Index = (*store.Store)(nil)
