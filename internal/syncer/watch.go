package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pders01/trace/internal/models"
)

// ReportFunc receives the outcome of every sync run started by Watch
type ReportFunc func(models.SyncReport, error)

// Watch runs an initial sync, then re-syncs whenever files under the corpus
// roots change. Bursts of events within debounce trigger a single run.
// It returns when ctx is done.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, onReport ReportFunc) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if onReport == nil {
		onReport = func(models.SyncReport, error) {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	e.watchRoots(w)
	onReport(e.Synchronize(ctx))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					e.watchTree(w, ev.Name)
				}
			}
			e.log().Debug("corpus event", "op", ev.Op.String(), "path", ev.Name)
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.log().Warn("watch error", "error", err)

		case <-timer.C:
			pending = false
			// roots that appeared since the last run need watching too
			e.watchRoots(w)
			onReport(e.Synchronize(ctx))
		}
	}
}

func (e *Engine) watchRoots(w *fsnotify.Watcher) {
	for _, root := range e.Scanner.Roots {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			e.watchTree(w, root)
			continue
		}
		// watch the parent so the root's creation is noticed
		if parent := filepath.Dir(root); parent != root {
			if err := w.Add(parent); err != nil {
				e.log().Debug("cannot watch parent of missing root", "root", root, "error", err)
			}
		}
	}
}

func (e *Engine) watchTree(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.Add(path); err != nil {
			e.log().Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}
