package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempWorkspace is a throwaway working directory holding a corpus, state
// file and knowledge store
type TempWorkspace struct {
	Path string
	T    *testing.T
}

// NewTempWorkspace creates a workspace with the default corpus roots
func NewTempWorkspace(t *testing.T) *TempWorkspace {
	t.Helper()

	w := &TempWorkspace{Path: t.TempDir(), T: t}
	for _, dir := range []string{DocsRoot, CasesRoot} {
		if err := os.MkdirAll(w.Abs(dir), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return w
}

// Default corpus roots relative to the workspace
var (
	DocsRoot  = filepath.Join("data", "inputs", "ApplicationDocuments")
	CasesRoot = filepath.Join("data", "inputs", "Existingtestcases")
)

// Abs joins rel onto the workspace path
func (w *TempWorkspace) Abs(rel string) string {
	return filepath.Join(w.Path, rel)
}

// CreateFile writes a file relative to the workspace
func (w *TempWorkspace) CreateFile(name, content string) string {
	w.T.Helper()
	path := w.Abs(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		w.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		w.T.Fatalf("failed to create file: %v", err)
	}
	return path
}

// RemoveFile deletes a file relative to the workspace
func (w *TempWorkspace) RemoveFile(name string) {
	w.T.Helper()
	if err := os.Remove(w.Abs(name)); err != nil {
		w.T.Fatalf("failed to remove file: %v", err)
	}
}

// RemoveAll deletes a directory tree relative to the workspace
func (w *TempWorkspace) RemoveAll(name string) {
	w.T.Helper()
	if err := os.RemoveAll(w.Abs(name)); err != nil {
		w.T.Fatalf("failed to remove %s: %v", name, err)
	}
}

// Chdir switches into the workspace for the rest of the test
func (w *TempWorkspace) Chdir() {
	w.T.Helper()
	w.T.Chdir(w.Path)
}
