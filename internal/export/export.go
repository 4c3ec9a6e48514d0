// Package export writes approved drafts to disk and optionally publishes
// them to an S3-compatible bucket.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/draft"
	"github.com/pders01/trace/internal/models"
)

// Supported formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Header is the first row of every CSV export
var Header = []string{"ID", "Title", "Action", "Expected Result"}

// Uploader publishes a saved file and returns where it landed
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Exporter saves drafts as test_cases_<unix>.<format> under Dir
type Exporter struct {
	Dir      string
	Format   string
	Uploader Uploader
	Logger   *slog.Logger
	now      func() time.Time
}

// New builds an exporter from the output settings. uploader may be nil.
func New(cfg *config.Config, uploader Uploader) *Exporter {
	return &Exporter{
		Dir:      cfg.Output.Dir,
		Format:   cfg.Output.Format,
		Uploader: uploader,
		Logger:   slog.Default(),
	}
}

// Case is the structured form of one test case in JSON and YAML exports
type Case struct {
	ID            string       `json:"id" yaml:"id"`
	Title         string       `json:"title,omitempty" yaml:"title,omitempty"`
	Preconditions string       `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Steps         []draft.Step `json:"steps" yaml:"steps"`
	Cleanup       string       `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
	Raw           string       `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Save renders d and writes it. An upload failure is logged and leaves the
// local file in place.
func (e *Exporter) Save(ctx context.Context, d models.Draft) (models.Artifact, error) {
	format := e.Format
	if format == "" {
		format = FormatCSV
	}

	var (
		data []byte
		rows int
		err  error
	)
	switch format {
	case FormatCSV:
		data, rows, err = RenderCSV(d)
	case FormatJSON:
		data, rows, err = RenderJSON(d)
	case FormatYAML:
		data, rows, err = RenderYAML(d)
	default:
		return models.Artifact{}, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return models.Artifact{}, fmt.Errorf("failed to render %s: %w", format, err)
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return models.Artifact{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	name := fmt.Sprintf("test_cases_%d.%s", e.clock()().Unix(), format)
	path := filepath.Join(e.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.Artifact{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	artifact := models.Artifact{Path: path, Format: format, Rows: rows}
	if e.Uploader != nil {
		loc, err := e.Uploader.Upload(ctx, path)
		if err != nil {
			e.log().Warn("failed to publish test cases", "path", path, "error", err)
		} else {
			artifact.Location = loc
		}
	}
	return artifact, nil
}

// RenderCSV writes one row per step. Entries without numbered steps get a
// single row carrying their raw text, and an unparsed draft becomes one row
// holding the whole text.
func RenderCSV(d models.Draft) ([]byte, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, 0, err
	}

	rows := 0
	if !d.Parsed() {
		if err := w.Write([]string{"", "", strings.TrimSpace(d.Raw), ""}); err != nil {
			return nil, 0, err
		}
		rows++
	}
	for _, e := range d.Entries {
		details := draft.Describe(e)
		if len(details.Steps) == 0 {
			if err := w.Write([]string{e.ID, e.Title, e.Raw, ""}); err != nil {
				return nil, 0, err
			}
			rows++
			continue
		}
		for i, s := range details.Steps {
			if err := w.Write([]string{e.ID, e.Title, fmt.Sprintf("%d. %s", i+1, s.Action), s.Expected}); err != nil {
				return nil, 0, err
			}
			rows++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), rows, nil
}

// Cases converts d into structured test cases. An unparsed draft becomes a
// single case holding the raw text.
func Cases(d models.Draft) []Case {
	if !d.Parsed() {
		return []Case{{Raw: strings.TrimSpace(d.Raw), Steps: []draft.Step{}}}
	}
	out := make([]Case, 0, len(d.Entries))
	for _, e := range d.Entries {
		details := draft.Describe(e)
		c := Case{
			ID:            e.ID,
			Title:         e.Title,
			Preconditions: details.Preconditions,
			Steps:         details.Steps,
			Cleanup:       details.Cleanup,
		}
		if c.Steps == nil {
			c.Steps = []draft.Step{}
			c.Raw = e.Raw
		}
		out = append(out, c)
	}
	return out
}

func RenderJSON(d models.Draft) ([]byte, int, error) {
	cases := Cases(d)
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	return append(data, '\n'), len(cases), nil
}

func RenderYAML(d models.Draft) ([]byte, int, error) {
	cases := Cases(d)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cases); err != nil {
		return nil, 0, err
	}
	if err := enc.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(cases), nil
}

func (e *Exporter) clock() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

func (e *Exporter) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
