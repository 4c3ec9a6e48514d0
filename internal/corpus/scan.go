// Package corpus discovers source documents under the configured roots and
// loads their text.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Root scan states
const (
	RootFound      = "found"
	RootMissing    = "missing"
	RootUnreadable = "unreadable"
)

// Fingerprint modes
const (
	FingerprintSHA256 = "sha256"
	FingerprintMtime  = "mtime"
)

// RootStatus reports what happened when a root was scanned
type RootStatus struct {
	Path  string `json:"path"`
	State string `json:"state"`
	Files int    `json:"files"`
	Error string `json:"error,omitempty"`
}

// ScanResult is a snapshot of the corpus on disk
type ScanResult struct {
	// Files maps source id to fingerprint
	Files map[string]string
	Roots []RootStatus
	// Unreadable holds ids that exist but could not be fingerprinted
	Unreadable map[string]string
}

// Scanner walks the corpus roots
type Scanner struct {
	Roots       []string
	Extensions  []string
	Fingerprint string
	Logger      *slog.Logger
}

// NewScanner normalizes roots and extensions
func NewScanner(roots, extensions []string, fingerprint string) *Scanner {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		clean = append(clean, filepath.Clean(r))
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, strings.ToLower(e))
	}
	if fingerprint == "" {
		fingerprint = FingerprintSHA256
	}
	return &Scanner{Roots: clean, Extensions: exts, Fingerprint: fingerprint, Logger: slog.Default()}
}

// Scan fingerprints every matching file under every root. A root that is
// missing or unreadable is reported in Roots, never treated as empty.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	res := ScanResult{
		Files:      make(map[string]string),
		Unreadable: make(map[string]string),
	}

	for _, root := range s.Roots {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		status := s.scanRoot(ctx, root, &res)
		res.Roots = append(res.Roots, status)
		if status.State != RootFound {
			s.log().Warn("corpus root not scanned", "root", root, "state", status.State, "error", status.Error)
		}
	}
	return res, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string, res *ScanResult) RootStatus {
	status := RootStatus{Path: root, State: RootFound}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		status.State = RootMissing
		return status
	case err != nil:
		status.State = RootUnreadable
		status.Error = err.Error()
		return status
	case !info.IsDir():
		status.State = RootUnreadable
		status.Error = "not a directory"
		return status
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// unreadable subtree: remember it so nothing below is removed
			res.Unreadable[SourceID(path)] = err.Error()
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.matches(path) {
			return nil
		}

		id := SourceID(path)
		fp, err := s.fingerprint(path)
		if err != nil {
			res.Unreadable[id] = err.Error()
			return nil
		}
		res.Files[id] = fp
		status.Files++
		return nil
	})
	if err != nil {
		status.State = RootUnreadable
		status.Error = err.Error()
	}
	return status
}

func (s *Scanner) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (s *Scanner) fingerprint(path string) (string, error) {
	if s.Fingerprint == FingerprintMtime {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("mtime:%s:%d", info.ModTime().UTC().Format(time.RFC3339Nano), info.Size()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Scanner) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// SourceID is the stable identifier of a file: its slash-separated path as
// reached from the configured root
func SourceID(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Available lists the roots that were scanned successfully
func (r ScanResult) Available() []string {
	var out []string
	for _, st := range r.Roots {
		if st.State == RootFound {
			out = append(out, st.Path)
		}
	}
	return out
}

// MissingRoots lists the roots that could not be scanned
func (r ScanResult) MissingRoots() []string {
	var out []string
	for _, st := range r.Roots {
		if st.State != RootFound {
			out = append(out, st.Path)
		}
	}
	sort.Strings(out)
	return out
}

// Protects reports whether id must be kept even though it is absent from
// Files: it lives under a root or subtree that could not be read.
func (r ScanResult) Protects(id string) bool {
	for _, st := range r.Roots {
		if st.State != RootFound && within(id, st.Path) {
			return true
		}
	}
	for bad := range r.Unreadable {
		if id == bad || within(id, bad) {
			return true
		}
	}
	return false
}

func within(id, dir string) bool {
	prefix := SourceID(dir)
	if prefix == "." {
		return true
	}
	return strings.HasPrefix(id, prefix+"/")
}
