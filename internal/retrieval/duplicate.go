package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/store"
)

// Guard re-validates identifiers claimed by the completion service
type Guard struct {
	// MaxIDLength is the length above which an identifier containing
	// whitespace is taken to be echoed scenario text
	MaxIDLength          int
	RejectNumericLeading bool
	// RequireInContext rejects identifiers absent from the retrieved text
	RequireInContext bool
}

// Accept returns nil when id looks like a real test identifier
func (g Guard) Accept(id, retrieved string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("empty identifier")
	}
	if g.RejectNumericLeading && unicode.IsDigit([]rune(id)[0]) {
		return fmt.Errorf("identifier %q starts with a digit", id)
	}
	if g.MaxIDLength > 0 && len([]rune(id)) > g.MaxIDLength && strings.ContainsFunc(id, unicode.IsSpace) {
		return fmt.Errorf("identifier %q looks like echoed text", id)
	}
	if g.RequireInContext && !strings.Contains(retrieved, id) {
		return fmt.Errorf("identifier %q does not appear in retrieved documents", id)
	}
	return nil
}

// FindDuplicate reports an existing test case that already covers scenario,
// or nil. The completion's claim only counts once Guard accepts it. Scenarios
// bound to a legacy id are updates, not duplicates.
func (a *Agent) FindDuplicate(ctx context.Context, scenario models.Scenario) (*models.LegacyReference, error) {
	if scenario.LegacyID != "" {
		return nil, nil
	}

	hits, err := a.Search(ctx, scenario.Title, a.TopK)
	if err != nil {
		if errors.Is(err, store.ErrIndexUnavailable) {
			a.log().Warn("duplicate check skipped, knowledge store unavailable", "scenario", scenario.Index)
			return nil, nil
		}
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	retrieved := strings.Join(texts, "\n\n")

	out, err := a.Completer.Complete(ctx, llm.Request{
		System: duplicateSystemPrompt,
		Prompt: fmt.Sprintf("<context>\n%s\n</context>\n\nScenario: %s", retrieved, scenario.Title),
	})
	if err != nil {
		return nil, err
	}

	claim, ok := ParseClaim(out)
	if !ok {
		return nil, nil
	}
	if err := a.Guard.Accept(claim.ID, retrieved); err != nil {
		a.log().Info("duplicate claim rejected", "scenario", scenario.Index, "reason", err)
		return nil, nil
	}
	claim.Scenario = scenario.Title
	return &claim, nil
}

// ParseClaim reads a "[MATCH] | <id> | <title>" line. "[NEW]" and anything
// unrecognised mean no match.
func ParseClaim(raw string) (models.LegacyReference, bool) {
	for _, line := range strings.Split(llm.StripFences(raw), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(line), "[MATCH]") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			return models.LegacyReference{}, false
		}
		ref := models.LegacyReference{ID: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			ref.Title = strings.TrimSpace(strings.Join(parts[2:], "|"))
		}
		if ref.ID == "" {
			return models.LegacyReference{}, false
		}
		return ref, true
	}
	return models.LegacyReference{}, false
}

const duplicateSystemPrompt = `You are the Archivist. Decide whether an existing test case in the context already covers the scenario.
Reply with exactly one line:
[MATCH] | <Test Case ID> | <Title>   when an existing test case covers the scenario
[NEW]                               otherwise
Only use Test Case IDs that appear in the context. Never invent an ID.`
