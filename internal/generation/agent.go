// Package generation drafts test cases for a task and refines them from
// review feedback.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pders01/trace/internal/draft"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

// Revision carries the previous attempt into a refinement
type Revision struct {
	Previous models.Draft
	Verdict  models.Verdict
}

// Agent writes drafts through the author role
type Agent struct {
	Completer llm.Completer
}

// New returns a generation agent
func New(c llm.Completer) *Agent {
	return &Agent{Completer: c}
}

// Write produces a fresh draft when rev is nil or carries no feedback, and a
// refinement otherwise. A refinement only replaces the entries the feedback
// implicates; every other entry of the previous draft is kept verbatim.
//
// Output that cannot be split into entries is returned with
// llm.ErrMalformedOutput: a fresh draft keeps the raw text, a refinement
// keeps the previous draft.
func (a *Agent) Write(ctx context.Context, task models.Task, knowledge string, rev *Revision) (models.Draft, error) {
	if len(task.Scenarios) == 0 {
		return models.Draft{}, errors.New("task has no scenarios")
	}

	if rev == nil || strings.TrimSpace(rev.Verdict.Feedback) == "" {
		out, err := a.Completer.Complete(ctx, llm.Request{
			System: systemPrompt,
			Prompt: freshPrompt(task, knowledge),
		})
		if err != nil {
			return models.Draft{}, err
		}
		return draft.Parse(out)
	}

	out, err := a.Completer.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: refinePrompt(task, knowledge, rev),
	})
	if err != nil {
		return rev.Previous, err
	}

	refined, err := draft.Parse(out)
	if err != nil {
		if rev.Previous.Parsed() {
			return rev.Previous, err
		}
		return refined, err
	}
	return draft.Merge(rev.Previous, refined, draft.CitedEntries(rev.Verdict, rev.Previous)), nil
}

// requiredIDs lists the Test Case ID each scenario must use
func requiredIDs(task models.Task) string {
	var b strings.Builder
	for _, s := range task.Scenarios {
		id := s.LegacyID
		if id == "" {
			id = fmt.Sprintf("TC_NEW_%d", s.Index)
		}
		fmt.Fprintf(&b, "- Scenario %d: Test Case ID %s\n", s.Index, id)
	}
	return b.String()
}

func freshPrompt(task models.Task, knowledge string) string {
	var b strings.Builder
	b.WriteString("--- CONTEXT ---\n")
	b.WriteString(knowledge)
	b.WriteString("\n\n--- SCENARIOS ---\n")
	b.WriteString(task.Describe())
	b.WriteString("\n\n--- TEST CASE IDS ---\n")
	b.WriteString(requiredIDs(task))
	b.WriteString("\nWrite exactly one test case per scenario, in scenario order.\n\n")
	b.WriteString(format)
	return b.String()
}

func refinePrompt(task models.Task, knowledge string, rev *Revision) string {
	var b strings.Builder
	b.WriteString("--- CONTEXT ---\n")
	b.WriteString(knowledge)
	b.WriteString("\n\n--- SCENARIOS ---\n")
	b.WriteString(task.Describe())
	b.WriteString("\n\n--- TEST CASE IDS ---\n")
	b.WriteString(requiredIDs(task))
	b.WriteString("\n--- PREVIOUS DRAFT ---\n")
	b.WriteString(rev.Previous.Text())
	b.WriteString("\n\n--- AUDITOR FEEDBACK ---\n")
	b.WriteString(rev.Verdict.Feedback)
	b.WriteString(`

Fix ONLY the test cases named in the feedback, and add test cases for scenarios the feedback says are missing.
Do not change test cases that were already correct. Return the full set of test cases.

`)
	b.WriteString(format)
	return b.String()
}

const systemPrompt = `You are the Author, a senior QA engineer. You write precise, executable manual test cases grounded only in the provided context. Never invent business rules that the context does not state.`

const format = `Format every test case exactly like this, separated by a blank line:
Test Case ID: <ID>
Scenario: <scenario number>
Title: <title>
Preconditions: <preconditions>
Steps:
1. <action> | Expected Result: <expected result>
2. <action> | Expected Result: <expected result>
Cleanup: <cleanup>`
