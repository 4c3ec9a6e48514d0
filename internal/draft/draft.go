// Package draft splits generated test cases into entries, merges refinements
// without disturbing untouched entries, and extracts step details.
package draft

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

var (
	idLine    = regexp.MustCompile(`(?im)^[ \t]*(?:[#>*-][ \t#*]*)?\**Test Case ID\**[ \t]*:\**[ \t]*(.*?)[ \t*]*$`)
	fieldLine = regexp.MustCompile(`(?im)^[ \t]*\**(Scenario|Title|Preconditions|Cleanup)\**[ \t]*:\**[ \t]*(.*?)[ \t]*$`)
	stepLine  = regexp.MustCompile(`^[ \t]*(\d+)[.)][ \t]*(.*?)[ \t]*$`)
	expected  = regexp.MustCompile(`(?i)\|?[ \t]*\**Expected Result\**[ \t]*:[ \t]*`)
)

// Parse splits text into entries, one per "Test Case ID:" line. Each entry
// keeps its exact text. Text without any entry comes back in Draft.Raw
// together with llm.ErrMalformedOutput.
func Parse(text string) (models.Draft, error) {
	text = strings.TrimSpace(llm.StripFences(text))
	locs := idLine.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return models.Draft{Raw: text}, fmt.Errorf("%w: no \"Test Case ID:\" lines in draft", llm.ErrMalformedOutput)
	}

	entries := make([]models.DraftEntry, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		raw := strings.TrimRight(text[loc[0]:end], " \t\r\n")
		raw = strings.TrimLeft(raw, "\r\n")

		entry := models.DraftEntry{
			ID:  strings.TrimSpace(text[loc[2]:loc[3]]),
			Raw: raw,
		}
		for _, m := range fieldLine.FindAllStringSubmatch(raw, -1) {
			switch strings.ToLower(m[1]) {
			case "scenario":
				if entry.Scenario == "" {
					entry.Scenario = scenarioRef(m[2])
				}
			case "title":
				if entry.Title == "" {
					entry.Title = m[2]
				}
			}
		}
		entries = append(entries, entry)
	}
	return models.Draft{Entries: entries}, nil
}

// scenarioRef reduces "Scenario: 2 - Login lockout" or "#2" to "2"
func scenarioRef(v string) string {
	v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "#"))
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end > 0 {
		return v[:end]
	}
	return v
}

// Step is one action with its expected result
type Step struct {
	Action   string `json:"action" yaml:"action"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// Details are the structured fields of an entry
type Details struct {
	Preconditions string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Steps         []Step `json:"steps" yaml:"steps"`
	Cleanup       string `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
}

// Describe extracts preconditions, numbered steps and cleanup from an entry
func Describe(entry models.DraftEntry) Details {
	var d Details
	for _, m := range fieldLine.FindAllStringSubmatch(entry.Raw, -1) {
		switch strings.ToLower(m[1]) {
		case "preconditions":
			d.Preconditions = m[2]
		case "cleanup":
			d.Cleanup = m[2]
		}
	}
	for _, line := range strings.Split(entry.Raw, "\n") {
		m := stepLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		parts := expected.Split(m[2], 2)
		step := Step{Action: strings.TrimSpace(strings.TrimRight(parts[0], " |"))}
		if len(parts) == 2 {
			step.Expected = strings.TrimSpace(parts[1])
		}
		d.Steps = append(d.Steps, step)
	}
	return d
}
