package draft

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pders01/trace/internal/models"
)

// Citation names the entries a rejection implicates. Whole means the
// feedback could not be tied to any entry, so the entire draft is open.
type Citation struct {
	IDs   map[string]bool
	Whole bool
}

// Cites reports whether id is implicated
func (c Citation) Cites(id string) bool {
	if c.Whole {
		return true
	}
	return c.IDs[strings.ToUpper(id)]
}

// CitedEntries maps a rejection onto entries of previous. Structured issues
// are used when present; otherwise entry ids mentioned in the feedback text.
func CitedEntries(verdict models.Verdict, previous models.Draft) Citation {
	c := Citation{IDs: make(map[string]bool)}

	if len(verdict.Issues) > 0 {
		for _, is := range verdict.Issues {
			if is.EntryID != "" {
				if _, ok := previous.Entry(is.EntryID); ok {
					c.IDs[strings.ToUpper(is.EntryID)] = true
					continue
				}
				// unknown id: fall back to the scenario, else open everything
				if is.Scenario == 0 || !c.citeScenario(previous, is.Scenario) {
					c.Whole = true
				}
				continue
			}
			if is.Scenario > 0 {
				// a coverage gap has no entries and cites none
				c.citeScenario(previous, is.Scenario)
				continue
			}
			c.Whole = true
		}
		return c
	}

	for _, e := range previous.Entries {
		if mentions(verdict.Feedback, e.ID) {
			c.IDs[strings.ToUpper(e.ID)] = true
		}
	}
	if len(c.IDs) == 0 {
		c.Whole = true
	}
	return c
}

// citeScenario cites the entries of scenario n and reports whether any exist
func (c Citation) citeScenario(previous models.Draft, n int) bool {
	ref := strconv.Itoa(n)
	found := false
	for _, e := range previous.Entries {
		if e.Scenario == ref {
			c.IDs[strings.ToUpper(e.ID)] = true
			found = true
		}
	}
	return found
}

func mentions(text, id string) bool {
	if id == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_-])` + regexp.QuoteMeta(id) + `($|[^A-Za-z0-9_-])`)
	return re.MatchString(text)
}

// Merge applies a refinement. Entries of previous that are not cited are
// copied byte-for-byte; cited entries are taken from refined, or dropped when
// refined no longer has them; entries new in refined are appended.
func Merge(previous, refined models.Draft, cited Citation) models.Draft {
	if !previous.Parsed() || cited.Whole {
		return refined
	}

	out := models.Draft{Entries: make([]models.DraftEntry, 0, len(previous.Entries))}
	known := make(map[string]bool, len(previous.Entries))
	for _, e := range previous.Entries {
		known[strings.ToUpper(e.ID)] = true
		if !cited.Cites(e.ID) {
			out.Entries = append(out.Entries, e)
			continue
		}
		if r, ok := refined.Entry(e.ID); ok {
			out.Entries = append(out.Entries, r)
		}
	}
	for _, r := range refined.Entries {
		if !known[strings.ToUpper(r.ID)] {
			out.Entries = append(out.Entries, r)
			known[strings.ToUpper(r.ID)] = true
		}
	}
	return out
}
