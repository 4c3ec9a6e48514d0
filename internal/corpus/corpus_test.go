package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	cases := filepath.Join(dir, "cases")

	writeFile(t, filepath.Join(docs, "rules.txt"), "password must be 10 characters")
	writeFile(t, filepath.Join(docs, "nested", "story.md"), "# Login")
	writeFile(t, filepath.Join(docs, "image.png"), "binary")
	writeFile(t, filepath.Join(docs, ".hidden.txt"), "secret")
	writeFile(t, filepath.Join(docs, ".git", "config.txt"), "ignored")
	writeFile(t, filepath.Join(cases, "TC_001.CSV"), "ID,Title\nTC_001,Verify Login\n")

	s := NewScanner([]string{docs, cases, filepath.Join(dir, "absent")}, []string{".txt", ".md", ".csv"}, "")
	res, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Files, 3)
	assert.Contains(t, res.Files, SourceID(filepath.Join(docs, "rules.txt")))
	assert.Contains(t, res.Files, SourceID(filepath.Join(docs, "nested", "story.md")))
	assert.Contains(t, res.Files, SourceID(filepath.Join(cases, "TC_001.CSV")))
	for id, fp := range res.Files {
		assert.True(t, strings.HasPrefix(fp, "sha256:"), id)
	}

	require.Len(t, res.Roots, 3)
	assert.Equal(t, RootFound, res.Roots[0].State)
	assert.Equal(t, 2, res.Roots[0].Files)
	assert.Equal(t, RootMissing, res.Roots[2].State)
	assert.Equal(t, []string{filepath.Join(dir, "absent")}, res.MissingRoots())
	assert.Equal(t, []string{docs, cases}, res.Available())
}

func TestScanFingerprintTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "t1")

	s := NewScanner([]string{dir}, []string{".txt"}, FingerprintSHA256)
	first, err := s.Scan(context.Background())
	require.NoError(t, err)

	second, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Files, second.Files)

	writeFile(t, path, "t2")
	third, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Files[SourceID(path)], third.Files[SourceID(path)])
}

func TestScanMtimeFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "t1")
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	s := NewScanner([]string{dir}, []string{".txt"}, FingerprintMtime)
	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mtime:2024-01-02T03:04:05Z:2", res.Files[SourceID(path)])
}

func TestScanRootIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir.txt")
	writeFile(t, file, "x")

	s := NewScanner([]string{file}, []string{".txt"}, "")
	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, RootUnreadable, res.Roots[0].State)
}

func TestProtects(t *testing.T) {
	res := ScanResult{
		Files: map[string]string{"docs/a.txt": "x"},
		Roots: []RootStatus{
			{Path: "docs", State: RootFound},
			{Path: "cases", State: RootMissing},
		},
		Unreadable: map[string]string{"docs/locked": "permission denied"},
	}

	assert.True(t, res.Protects("cases/TC_001.csv"))
	assert.True(t, res.Protects("docs/locked/b.txt"))
	assert.False(t, res.Protects("docs/gone.txt"))
	assert.False(t, res.Protects("casesx/a.txt"))
	assert.False(t, res.Protects("old-root/a.txt"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "story.md")
		writeFile(t, path, "\xef\xbb\xbf# Login\nUser enters password")

		doc, err := Load(SourceID(path), "fp")
		require.NoError(t, err)
		assert.Equal(t, "# Login\nUser enters password", doc.Content)
		assert.Equal(t, "fp", doc.Fingerprint)
		assert.Equal(t, SourceID(path), doc.ID)
	})

	t.Run("csv rows", func(t *testing.T) {
		path := filepath.Join(dir, "cases.csv")
		writeFile(t, path, "ID,Title\nTC_001,Verify Login\nTC_002,Verify Logout\n")

		doc, err := Load(SourceID(path), "fp")
		require.NoError(t, err)
		assert.Equal(t, "ID: TC_001\nTitle: Verify Login\n\nID: TC_002\nTitle: Verify Logout", doc.Content)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "doc.pdf")
		writeFile(t, path, "%PDF")

		_, err := Load(SourceID(path), "fp")
		assert.ErrorContains(t, err, "no loader")
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := filepath.Join(dir, "bad.txt")
		writeFile(t, path, "\xff\xfe\xfd")

		_, err := Load(SourceID(path), "fp")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(SourceID(filepath.Join(dir, "gone.txt")), "fp")
		assert.Error(t, err)
	})
}
