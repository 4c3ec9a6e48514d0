// Package syncstate persists the fingerprints the knowledge store was last
// built from.
package syncstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CurrentVersion is the file format version written by Save
const CurrentVersion = 1

// State maps source ids to the fingerprint that is currently indexed
type State struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Sources   map[string]string `json:"sources"`
}

// New returns an empty state
func New() State {
	return State{Version: CurrentVersion, Sources: make(map[string]string)}
}

// Load reads the state file. An absent file is an empty state; a corrupt one
// is logged and also treated as empty so the next sync rebuilds from disk.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("failed to read sync state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("sync state is corrupt, starting from empty state", "path", path, "error", err)
		return New(), nil
	}
	if st.Sources == nil {
		st.Sources = make(map[string]string)
	}
	return st, nil
}

// Save writes the state atomically: temp file, fsync, rename
func Save(path string, st State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	st.Version = CurrentVersion
	if st.Sources == nil {
		st.Sources = make(map[string]string)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close sync state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace sync state: %w", err)
	}
	return nil
}

// Clone returns a deep copy
func (s State) Clone() State {
	out := State{Version: s.Version, UpdatedAt: s.UpdatedAt, Sources: make(map[string]string, len(s.Sources))}
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	return out
}
