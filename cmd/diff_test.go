package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pders01/trace/internal/testutil"
)

func TestDiffBeforeFirstSync(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	changes, err := pendingDiff(context.Background(), cfg)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}

	if len(changes.Added) != 2 {
		t.Errorf("expected 2 added documents, got %v", changes.Added)
	}
	if len(changes.Removed) != 0 || len(changes.Changed) != 0 {
		t.Errorf("unexpected changes: %+v", changes)
	}

	// diff never writes the state file
	if err := runDiff(nil, []string{}); err != nil {
		t.Fatalf("diff command failed: %v", err)
	}
	changes, err = pendingDiff(context.Background(), cfg)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(changes.Added) != 2 {
		t.Errorf("diff must not record state, got %v", changes.Added)
	}
}

func TestDiffAfterChanges(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	w.CreateFile(filepath.Join(testutil.DocsRoot, "login.md"), "Login requires a password of at least 12 characters.")
	w.CreateFile(filepath.Join(testutil.DocsRoot, "reset.txt"), "Password reset links expire after one hour.")
	w.RemoveFile(filepath.Join(testutil.CasesRoot, "cases.csv"))

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	changes, err := pendingDiff(context.Background(), cfg)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}

	if len(changes.Added) != 1 || changes.Added[0] != "data/inputs/ApplicationDocuments/reset.txt" {
		t.Errorf("unexpected added: %v", changes.Added)
	}
	if len(changes.Changed) != 1 || changes.Changed[0] != "data/inputs/ApplicationDocuments/login.md" {
		t.Errorf("unexpected changed: %v", changes.Changed)
	}
	if len(changes.Removed) != 1 || changes.Removed[0] != "data/inputs/Existingtestcases/cases.csv" {
		t.Errorf("unexpected removed: %v", changes.Removed)
	}
}

func TestDiffMissingRootProtectsDocuments(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	w.RemoveAll(testutil.CasesRoot)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	changes, err := pendingDiff(context.Background(), cfg)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if len(changes.Removed) != 0 {
		t.Errorf("documents under a missing folder must not be removed: %v", changes.Removed)
	}
	if len(changes.MissingRoots) != 1 {
		t.Errorf("expected one missing root, got %v", changes.MissingRoots)
	}
}
