package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pders01/trace/internal/store"
	"github.com/pders01/trace/internal/syncstate"
	"github.com/pders01/trace/internal/testutil"
)

func indexedSources(t *testing.T) map[string]int {
	t.Helper()
	st, err := store.Open(filepath.Join("data", "index.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	return stats.BySource
}

func TestSyncCommand(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("sync command failed: %v", err)
	}

	sources := indexedSources(t)
	if len(sources) != 2 {
		t.Fatalf("expected 2 indexed sources, got %d: %v", len(sources), sources)
	}

	state, err := syncstate.Load(filepath.Join("data", "sync_state.json"))
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if len(state.Sources) != 2 {
		t.Errorf("expected 2 tracked sources, got %d", len(state.Sources))
	}
}

func TestSyncCommandRemovesDeletedDocuments(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	w.RemoveFile(filepath.Join(testutil.DocsRoot, "login.md"))
	syncYes = true
	defer resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	sources := indexedSources(t)
	if _, ok := sources["data/inputs/ApplicationDocuments/login.md"]; ok {
		t.Error("deleted document is still indexed")
	}
	if len(sources) != 1 {
		t.Errorf("expected 1 indexed source, got %d", len(sources))
	}
}

func TestSyncCommandMissingRootKeepsIndex(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	w.RemoveAll(testutil.DocsRoot)
	syncYes = true
	defer resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if _, ok := indexedSources(t)["data/inputs/ApplicationDocuments/login.md"]; !ok {
		t.Error("documents under a missing folder must stay indexed")
	}
}

func TestSyncCommandJSON(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()
	syncJSON = true
	defer resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("sync command failed: %v", err)
	}
}
