package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

// ErrDegenerateInput is returned by Guardrail for input not worth an
// external call
var ErrDegenerateInput = errors.New("input rejected")

// Intent is the route an input takes through the orchestrator
type Intent string

const (
	IntentQuestion    Intent = "question"
	IntentRequirement Intent = "requirement"
)

// Guardrail rejects degenerate input locally, before anything external runs.
func Guardrail(input string, cfg *config.Config) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return fmt.Errorf("%w: input is empty", ErrDegenerateInput)
	}
	if n := len([]rune(text)); n < cfg.Workflow.MinInputLength {
		return fmt.Errorf("%w: input is %d characters, need at least %d", ErrDegenerateInput, n, cfg.Workflow.MinInputLength)
	}
	words := strings.Fields(text)
	if len(words) < cfg.Workflow.MinInputWords {
		return fmt.Errorf("%w: input has %d word(s), need at least %d", ErrDegenerateInput, len(words), cfg.Workflow.MinInputWords)
	}

	letters := 0
	distinct := make(map[rune]bool)
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			distinct[unicode.ToLower(r)] = true
		}
	}
	if letters == 0 {
		return fmt.Errorf("%w: input contains no words", ErrDegenerateInput)
	}
	if len(distinct) < 3 {
		return fmt.Errorf("%w: input looks like noise", ErrDegenerateInput)
	}
	return nil
}

var interrogatives = map[string]bool{
	"what": true, "which": true, "who": true, "whom": true, "whose": true,
	"when": true, "where": true, "why": true, "how": true,
	"is": true, "are": true, "does": true, "do": true, "can": true, "should": true,
}

// Classify routes short interrogative input to research and everything else
// to generation.
func Classify(input string, cfg *config.Config) Intent {
	text := strings.TrimSpace(input)
	if len([]rune(text)) >= cfg.Workflow.QuestionMaxLength {
		return IntentRequirement
	}
	if strings.Contains(text, "?") {
		return IntentQuestion
	}
	fields := strings.Fields(text)
	if len(fields) > 0 {
		first := strings.ToLower(strings.TrimRightFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) }))
		if interrogatives[first] {
			return IntentQuestion
		}
	}
	return IntentRequirement
}

var (
	bracketID = regexp.MustCompile(`\[\s*([A-Za-z][A-Za-z0-9]*[-_][A-Za-z0-9_-]+)\s*\]`)
	labeledID = regexp.MustCompile(`(?i)\(\s*ID\s*:\s*([A-Za-z0-9][A-Za-z0-9_.-]*)\s*\)`)

	enumerated    = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+?)\s*$`)
	scenarioLabel = regexp.MustCompile(`(?i)^\s*Scenario\s*\d*\s*:\s*(.+?)\s*$`)
	scenarioHead  = regexp.MustCompile(`(?i)^\s*#*\s*\**(scenarios?|test cases?|tasks?)\**\s*:?\s*$`)
)

// GeneralRequirement is the context used when the input carries none
const GeneralRequirement = "General Requirement"

// SplitInput separates background context from the scenarios to cover. The
// manager completion does the split; when it fails or returns nothing usable
// the local heuristic takes over.
func SplitInput(ctx context.Context, manager llm.Completer, input string) (models.Task, error) {
	if manager != nil {
		task, err := splitWithManager(ctx, manager, input)
		if err == nil {
			return task, nil
		}
		if ctx.Err() != nil {
			return models.Task{}, ctx.Err()
		}
	}
	return SplitHeuristic(input), nil
}

type splitReply struct {
	Context   string   `json:"context"`
	Scenarios []string `json:"scenarios"`
}

func splitWithManager(ctx context.Context, manager llm.Completer, input string) (models.Task, error) {
	out, err := manager.Complete(ctx, llm.Request{
		System: splitSystemPrompt,
		Prompt: fmt.Sprintf("INPUT TEXT:\n%s", input),
		JSON:   true,
	})
	if err != nil {
		return models.Task{}, err
	}

	var reply splitReply
	if err := llm.DecodeJSON(out, &reply); err != nil {
		return models.Task{}, err
	}
	titles := make([]string, 0, len(reply.Scenarios))
	for _, s := range reply.Scenarios {
		if s = strings.TrimSpace(s); s != "" {
			titles = append(titles, s)
		}
	}
	if len(titles) == 0 {
		return models.Task{}, fmt.Errorf("%w: no scenarios in split", llm.ErrMalformedOutput)
	}
	return newTask(reply.Context, titles), nil
}

// SplitHeuristic treats enumerated lines as scenarios and the rest as
// context. A "Scenarios:" heading limits scenarios to the lines after it.
// Input without enumerated lines becomes a single scenario.
func SplitHeuristic(input string) models.Task {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")

	head := -1
	for i, line := range lines {
		if scenarioHead.MatchString(line) {
			head = i
		}
	}

	var background []string
	var titles []string
	for i, line := range lines {
		if i == head {
			continue
		}
		if i > head {
			if m := scenarioLabel.FindStringSubmatch(line); m != nil {
				titles = append(titles, m[1])
				continue
			}
			if m := enumerated.FindStringSubmatch(line); m != nil {
				titles = append(titles, m[1])
				continue
			}
		}
		background = append(background, line)
	}

	if len(titles) == 0 {
		return newTask(input, []string{strings.TrimSpace(input)})
	}
	return newTask(strings.Join(background, "\n"), titles)
}

func newTask(background string, titles []string) models.Task {
	background = strings.TrimSpace(background)
	if background == "" {
		background = GeneralRequirement
	}
	task := models.Task{Context: background, Scenarios: make([]models.Scenario, 0, len(titles))}
	for i, t := range titles {
		title, id := BindLegacyID(t)
		task.Scenarios = append(task.Scenarios, models.Scenario{Index: i + 1, Title: title, LegacyID: id})
	}
	return task
}

// BindLegacyID pulls an existing test case id written as "[TC_001]" or
// "(ID: TC-001)" out of a scenario title.
func BindLegacyID(title string) (string, string) {
	for _, re := range []*regexp.Regexp{labeledID, bracketID} {
		loc := re.FindStringSubmatchIndex(title)
		if loc == nil {
			continue
		}
		id := title[loc[2]:loc[3]]
		rest := strings.Join(strings.Fields(title[:loc[0]]+" "+title[loc[1]:]), " ")
		rest = strings.Trim(rest, " -:")
		if rest == "" {
			rest = title
		}
		return rest, id
	}
	return strings.TrimSpace(title), ""
}

const splitSystemPrompt = `You are the Manager, a QA lead. Split the input into:
1. "context": the feature title, background and acceptance criteria, verbatim.
2. "scenarios": the specific scenarios to test, one string per scenario, verbatim including any test case ids.
Reply with JSON only: {"context": "...", "scenarios": ["...", "..."]}`
