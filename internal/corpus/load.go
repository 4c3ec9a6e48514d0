package corpus

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pders01/trace/internal/models"
)

// Loader turns raw file bytes into indexable text
type Loader func(data []byte) (string, error)

// Loaders maps lowercase extensions to their loader
var Loaders = map[string]Loader{
	".txt": loadText,
	".md":  loadText,
	".csv": loadCSV,
}

// Load reads a single source document. Unsupported extensions and
// undecodable content fail for that source only.
func Load(id, fingerprint string) (models.SourceDocument, error) {
	path := filepath.FromSlash(id)
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := Loaders[ext]
	if !ok {
		return models.SourceDocument{}, fmt.Errorf("no loader for extension %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to read %s: %w", id, err)
	}

	text, err := loader(data)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to load %s: %w", id, err)
	}

	return models.SourceDocument{
		ID:          id,
		Root:        filepath.ToSlash(filepath.Dir(path)),
		Path:        path,
		Fingerprint: fingerprint,
		Content:     text,
	}, nil
}

func loadText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}

// loadCSV renders every row as "header: value" lines, rows separated by a
// blank line, so each row stays a self-contained retrieval unit
func loadCSV(data []byte) (string, error) {
	text, err := loadText(data)
	if err != nil {
		return "", err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("invalid csv: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	header := rows[0]
	var b strings.Builder
	for i, row := range rows[1:] {
		if i > 0 {
			b.WriteString("\n\n")
		}
		for j, val := range row {
			name := fmt.Sprintf("column%d", j+1)
			if j < len(header) && strings.TrimSpace(header[j]) != "" {
				name = strings.TrimSpace(header[j])
			}
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(val))
		}
	}
	return b.String(), nil
}
