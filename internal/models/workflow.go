package models

import (
	"fmt"
	"strings"
)

// Scenario is one unit of requested work: a single test case to write.
type Scenario struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	LegacyID string `json:"legacy_id,omitempty"`
}

// Task is the parsed form of a workflow input: background rules plus the scenarios to cover.
type Task struct {
	Context   string     `json:"context"`
	Scenarios []Scenario `json:"scenarios"`
}

// Describe renders the numbered scenario list shown to the generation and review agents.
func (t Task) Describe() string {
	var b strings.Builder
	for i, s := range t.Scenarios {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", s.Index, s.Title)
		if s.LegacyID != "" {
			fmt.Fprintf(&b, " (Test Case ID: %s)", s.LegacyID)
		}
	}
	return b.String()
}

// Scenario returns the scenario with the given index.
func (t Task) Scenario(index int) (Scenario, bool) {
	for _, s := range t.Scenarios {
		if s.Index == index {
			return s, true
		}
	}
	return Scenario{}, false
}

// DraftEntry is one test case inside a draft. Raw holds the exact text block.
type DraftEntry struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario,omitempty"`
	Title    string `json:"title,omitempty"`
	Raw      string `json:"raw"`
}

// Draft is a candidate set of test cases produced by the generation agent.
// A draft whose text could not be split into entries keeps the text in Raw.
type Draft struct {
	Entries []DraftEntry `json:"entries"`
	Raw     string       `json:"raw,omitempty"`
}

// Text renders the draft back into the block format the agents exchange.
func (d Draft) Text() string {
	if len(d.Entries) == 0 {
		return d.Raw
	}
	parts := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		parts[i] = e.Raw
	}
	return strings.Join(parts, "\n\n")
}

// Parsed reports whether the draft was split into entries.
func (d Draft) Parsed() bool {
	return len(d.Entries) > 0
}

// Entry looks up an entry by test case id (case-insensitive).
func (d Draft) Entry(id string) (DraftEntry, bool) {
	for _, e := range d.Entries {
		if strings.EqualFold(e.ID, id) {
			return e, true
		}
	}
	return DraftEntry{}, false
}

// VerdictStatus tags a review verdict
type VerdictStatus string

const (
	VerdictApproved VerdictStatus = "approved"
	VerdictRejected VerdictStatus = "rejected"
)

// Issue is one deficiency named by the review agent.
type Issue struct {
	EntryID  string `json:"entry_id,omitempty"`
	Scenario int    `json:"scenario,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Target names what the issue points at, for feedback rendering.
func (i Issue) Target() string {
	switch {
	case i.EntryID != "":
		return i.EntryID
	case i.Scenario > 0:
		return fmt.Sprintf("Scenario %d", i.Scenario)
	default:
		return "Draft"
	}
}

// Verdict is the tagged result of a review.
type Verdict struct {
	Status   VerdictStatus `json:"status"`
	Feedback string        `json:"feedback,omitempty"`
	Issues   []Issue       `json:"issues,omitempty"`
}

// Approved reports whether the verdict ends the generation loop.
func (v Verdict) Approved() bool {
	return v.Status == VerdictApproved
}

// Approve builds an approval verdict.
func Approve() Verdict {
	return Verdict{Status: VerdictApproved}
}

// Reject builds a rejection verdict whose feedback names each issue on its own line.
func Reject(issues ...Issue) Verdict {
	lines := make([]string, 0, len(issues))
	for _, is := range issues {
		if is.Field != "" {
			lines = append(lines, fmt.Sprintf("%s [%s]: %s", is.Target(), is.Field, is.Message))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s", is.Target(), is.Message))
		}
	}
	return Verdict{Status: VerdictRejected, Feedback: strings.Join(lines, "\n"), Issues: issues}
}

// LegacyReference points at an existing test case that already covers a scenario.
type LegacyReference struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Scenario string `json:"scenario"`
}

// Outcome is the terminal state of one orchestration run
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAnswered  Outcome = "answered"
)

// Artifact is what the persistence component produced for an approved draft.
type Artifact struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Rows     int    `json:"rows"`
	Location string `json:"location,omitempty"`
}

// WorkflowResult is the final outcome of one orchestration run.
type WorkflowResult struct {
	RunID     string           `json:"run_id"`
	Outcome   Outcome          `json:"outcome"`
	Answer    string           `json:"answer,omitempty"`
	Artifact  *Artifact        `json:"artifact,omitempty"`
	Draft     *Draft           `json:"draft,omitempty"`
	Duplicate *LegacyReference `json:"duplicate,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Attempts  int              `json:"attempts"`
	Sync      *SyncReport      `json:"sync,omitempty"`
}

// Summary returns a one-line human-readable explanation of the outcome.
func (r WorkflowResult) Summary() string {
	switch r.Outcome {
	case OutcomeCompleted:
		if r.Artifact != nil {
			return fmt.Sprintf("Test cases approved after %d attempt(s), saved to %s", r.Attempts, r.Artifact.Path)
		}
		return fmt.Sprintf("Test cases approved after %d attempt(s)", r.Attempts)
	case OutcomeDuplicate:
		return fmt.Sprintf("Duplicate detected: %q is already covered by %s", r.Duplicate.Scenario, r.Duplicate.ID)
	case OutcomeExhausted:
		return fmt.Sprintf("Review did not approve the draft within %d attempt(s): %s", r.Attempts, r.Reason)
	case OutcomeRejected:
		return "Input rejected: " + r.Reason
	case OutcomeAnswered:
		return r.Answer
	default:
		return string(r.Outcome)
	}
}
