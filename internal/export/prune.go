package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Prune deletes saved test case files whose age expire accepts and returns
// their paths. A missing output directory has nothing to prune.
func (e *Exporter) Prune(expire func(age time.Duration) bool) ([]string, error) {
	entries, err := os.ReadDir(e.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	now := e.clock()()
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "test_cases_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !expire(now.Sub(info.ModTime())) {
			continue
		}
		path := filepath.Join(e.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	sort.Strings(removed)
	return removed, nil
}
