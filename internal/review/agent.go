// Package review audits drafts against the task and the retrieved rules.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

// Agent reviews drafts through the auditor role
type Agent struct {
	Completer llm.Completer
	Logger    *slog.Logger
}

// New returns a review agent
func New(c llm.Completer) *Agent {
	return &Agent{Completer: c, Logger: slog.Default()}
}

// Review returns a verdict for d. Structural problems are caught locally and
// rejected without a completion call. An auditor reply that cannot be read
// is a rejection carrying the raw reply as feedback. Only a failed
// completion is returned as an error.
func (a *Agent) Review(ctx context.Context, task models.Task, knowledge string, d models.Draft) (models.Verdict, error) {
	if issues := Structural(task, d); len(issues) > 0 {
		return models.Reject(issues...), nil
	}

	out, err := a.Completer.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: auditPrompt(task, knowledge, d),
		JSON:   true,
	})
	if err != nil {
		return models.Verdict{}, err
	}

	verdict, err := ParseVerdict(out)
	if err != nil {
		a.Logger.Warn("unreadable auditor reply", "error", err)
		return models.Verdict{Status: models.VerdictRejected, Feedback: strings.TrimSpace(out)}, nil
	}
	return verdict, nil
}

// Structural checks what can be verified without a model: the draft must
// split into entries, every entry must name a scenario of the task, every
// scenario must be covered, and bound scenarios must reuse their legacy id.
func Structural(task models.Task, d models.Draft) []models.Issue {
	if !d.Parsed() {
		return []models.Issue{{
			Field:   "format",
			Message: `draft contains no "Test Case ID:" entries; rewrite every test case in the required format`,
		}}
	}

	var issues []models.Issue
	covered := make(map[int]bool, len(task.Scenarios))
	for _, e := range d.Entries {
		if e.Scenario == "" {
			issues = append(issues, models.Issue{EntryID: e.ID, Field: "scenario", Message: "entry does not state which scenario it covers"})
			continue
		}
		n, err := strconv.Atoi(e.Scenario)
		if err != nil {
			issues = append(issues, models.Issue{EntryID: e.ID, Field: "scenario", Message: fmt.Sprintf("scenario %q is not a scenario number", e.Scenario)})
			continue
		}
		if _, ok := task.Scenario(n); !ok {
			issues = append(issues, models.Issue{EntryID: e.ID, Field: "scenario", Message: fmt.Sprintf("scenario %d is not part of the task", n)})
			continue
		}
		covered[n] = true
	}

	for _, s := range task.Scenarios {
		if !covered[s.Index] {
			issues = append(issues, models.Issue{Scenario: s.Index, Field: "coverage", Message: fmt.Sprintf("no test case covers %q", s.Title)})
			continue
		}
		if s.LegacyID != "" {
			if _, ok := d.Entry(s.LegacyID); !ok {
				issues = append(issues, models.Issue{Scenario: s.Index, Field: "id", Message: fmt.Sprintf("must reuse Test Case ID %s", s.LegacyID)})
			}
		}
	}
	return issues
}

type auditReply struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
	Issues   []struct {
		EntryID  string `json:"entry_id"`
		Scenario int    `json:"scenario"`
		Field    string `json:"field"`
		Message  string `json:"message"`
	} `json:"issues"`
}

var (
	statusLine   = regexp.MustCompile(`(?im)^[ \t*]*STATUS[ \t*]*:[ \t*]*(APPROVED|REJECTED)\b`)
	feedbackLine = regexp.MustCompile(`(?ims)^[ \t*]*FEEDBACK[ \t*]*:[ \t*]*(.*)$`)
)

// ParseVerdict reads an auditor reply. The JSON form is preferred; the
// two-line "STATUS: ... / FEEDBACK: ..." form is accepted from models that
// ignore JSON mode. An approval that still lists issues is a rejection.
func ParseVerdict(raw string) (models.Verdict, error) {
	var reply auditReply
	if err := llm.DecodeJSON(raw, &reply); err != nil {
		return parseStatusLines(raw, err)
	}

	issues := make([]models.Issue, 0, len(reply.Issues))
	for _, is := range reply.Issues {
		if strings.TrimSpace(is.Message) == "" {
			continue
		}
		issues = append(issues, models.Issue{
			EntryID:  strings.TrimSpace(is.EntryID),
			Scenario: is.Scenario,
			Field:    strings.TrimSpace(is.Field),
			Message:  strings.TrimSpace(is.Message),
		})
	}

	switch strings.ToLower(strings.TrimSpace(reply.Status)) {
	case string(models.VerdictApproved):
		if len(issues) == 0 {
			return models.Approve(), nil
		}
		return models.Reject(issues...), nil
	case string(models.VerdictRejected):
		if len(issues) > 0 {
			return models.Reject(issues...), nil
		}
		fb := strings.TrimSpace(reply.Feedback)
		if fb == "" {
			fb = "rejected without details; re-check every test case against the rules"
		}
		return models.Verdict{Status: models.VerdictRejected, Feedback: fb}, nil
	default:
		return models.Verdict{}, fmt.Errorf("%w: unknown status %q", llm.ErrMalformedOutput, reply.Status)
	}
}

func parseStatusLines(raw string, cause error) (models.Verdict, error) {
	text := llm.StripFences(raw)
	m := statusLine.FindStringSubmatchIndex(text)
	if m == nil {
		return models.Verdict{}, cause
	}
	if strings.EqualFold(text[m[2]:m[3]], "APPROVED") {
		return models.Approve(), nil
	}

	fb := strings.TrimSpace(text[m[1]:])
	if f := feedbackLine.FindStringSubmatch(fb); f != nil {
		fb = strings.TrimSpace(f[1])
	}
	if fb == "" {
		fb = "rejected without details; re-check every test case against the rules"
	}
	return models.Verdict{Status: models.VerdictRejected, Feedback: fb}, nil
}

func auditPrompt(task models.Task, knowledge string, d models.Draft) string {
	var b strings.Builder
	b.WriteString("--- RULES AND CONTEXT ---\n")
	b.WriteString(knowledge)
	b.WriteString("\n\n--- SCENARIOS ---\n")
	b.WriteString(task.Describe())
	b.WriteString("\n\n--- DRAFT ---\n")
	b.WriteString(d.Text())
	b.WriteString(`

Check every test case:
1. Traceability: each step and expected result must follow from the rules above.
2. Violations: reject any expected result that contradicts a rule (for example a login that succeeds with a password the rules forbid).
3. Coverage: each scenario needs exactly one test case.

Reply with JSON only:
{"status": "approved" | "rejected", "issues": [{"entry_id": "<Test Case ID>", "scenario": <number>, "field": "<field>", "message": "<what is wrong and which rule it breaks>"}]}
Use an empty issues list when approving.`)
	return b.String()
}

const systemPrompt = `You are the Auditor, a strict QA lead. You approve a draft only when every test case is traceable to the provided rules and none contradicts them. Name the exact Test Case ID of every problem.`
