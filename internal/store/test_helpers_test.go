package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pders01/trace/internal/models"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// record builds an IndexRecord with a deterministic id.
func record(source string, chunk int, text string, vec ...float64) models.IndexRecord {
	return models.IndexRecord{
		ID:         fmt.Sprintf("%s#%d", source, chunk),
		SourceID:   source,
		ChunkIndex: chunk,
		Text:       text,
		Embedding:  vec,
	}
}
