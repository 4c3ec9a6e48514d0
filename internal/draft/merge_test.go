package draft

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/trace/internal/models"
)

func mustParse(t *testing.T, text string) models.Draft {
	t.Helper()
	d, err := Parse(text)
	require.NoError(t, err)
	return d
}

const previousDraft = `Test Case ID: TC_NEW_1
Scenario: 1
Title: Valid password
Steps:
1. Enter "Secret123" | Expected Result: Login Successful

Test Case ID: TC_NEW_2
Scenario: 2
Title: Lockout   (odd   spacing kept)
Steps:
1. Fail three times | Expected Result: Account locked`

func TestMergePreservesUncitedEntries(t *testing.T) {
	previous := mustParse(t, previousDraft)

	// the refinement rewrites both entries, but only TC_NEW_1 was cited
	refined := mustParse(t, `Test Case ID: TC_NEW_1
Scenario: 1
Title: Valid password
Steps:
1. Enter "Secret1234" | Expected Result: Login Successful

Test Case ID: TC_NEW_2
Scenario: 2
Title: Lockout (reformatted)
Steps:
1. Fail three times | Expected Result: Locked`)

	merged := Merge(previous, refined, Citation{IDs: map[string]bool{"TC_NEW_1": true}})
	require.Len(t, merged.Entries, 2)
	assert.Contains(t, merged.Entries[0].Raw, "Secret1234")
	assert.Equal(t, previous.Entries[1].Raw, merged.Entries[1].Raw, "uncited entry is byte-identical")
	assert.True(t, strings.Contains(merged.Text(), "odd   spacing kept"))
}

func TestMergeAppendsNewAndDropsRemoved(t *testing.T) {
	previous := mustParse(t, previousDraft)
	refined := mustParse(t, `Test Case ID: TC_NEW_2
Scenario: 2
Title: Lockout
Steps:
1. Fail | Expected Result: Locked

Test Case ID: TC_NEW_3
Scenario: 3
Title: Session timeout`)

	merged := Merge(previous, refined, Citation{IDs: map[string]bool{"TC_NEW_1": true}})
	ids := make([]string, 0, len(merged.Entries))
	for _, e := range merged.Entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"TC_NEW_2", "TC_NEW_3"}, ids)
	assert.Equal(t, previous.Entries[1].Raw, merged.Entries[0].Raw)
}

func TestMergeWholeTakesRefined(t *testing.T) {
	previous := mustParse(t, previousDraft)
	refined := mustParse(t, "Test Case ID: TC_NEW_9\nScenario: 1\nTitle: Rewritten")

	merged := Merge(previous, refined, Citation{Whole: true})
	assert.Equal(t, refined, merged)

	merged = Merge(models.Draft{Raw: "garbage"}, refined, Citation{})
	assert.Equal(t, refined, merged)
}

func TestCitedEntries(t *testing.T) {
	previous := mustParse(t, previousDraft)

	t.Run("structured entry issue", func(t *testing.T) {
		v := models.Reject(models.Issue{EntryID: "tc_new_2", Field: "steps", Message: "missing expected result"})
		c := CitedEntries(v, previous)
		assert.False(t, c.Whole)
		assert.True(t, c.Cites("TC_NEW_2"))
		assert.False(t, c.Cites("TC_NEW_1"))
	})

	t.Run("scenario issue maps to its entries", func(t *testing.T) {
		v := models.Reject(models.Issue{Scenario: 1, Message: "password too short"})
		c := CitedEntries(v, previous)
		assert.True(t, c.Cites("TC_NEW_1"))
		assert.False(t, c.Cites("TC_NEW_2"))
	})

	t.Run("unknown entry id falls back to its scenario", func(t *testing.T) {
		v := models.Reject(models.Issue{EntryID: "TC_001", Scenario: 1, Message: "password too short"})
		c := CitedEntries(v, previous)
		assert.False(t, c.Whole)
		assert.True(t, c.Cites("TC_NEW_1"))
		assert.False(t, c.Cites("TC_NEW_2"))

		refined := mustParse(t, "Test Case ID: TC_NEW_1\nScenario: 1\nTitle: Valid password\nSteps:\n1. Enter \"Secret1234\" | Expected Result: Login Successful")
		merged := Merge(previous, refined, c)
		require.Len(t, merged.Entries, 2)
		assert.Contains(t, merged.Entries[0].Raw, "Secret1234")
		assert.NotEqual(t, previous.Text(), merged.Text())
	})

	t.Run("unknown entry id without a scenario opens the whole draft", func(t *testing.T) {
		v := models.Reject(models.Issue{EntryID: "TC_001", Message: "wrong id"})
		assert.True(t, CitedEntries(v, previous).Whole)

		v = models.Reject(models.Issue{EntryID: "TC_001", Scenario: 3, Message: "no such scenario entries"})
		assert.True(t, CitedEntries(v, previous).Whole)
	})

	t.Run("coverage gap cites nothing", func(t *testing.T) {
		v := models.Reject(models.Issue{Scenario: 3, Message: "no test case"})
		c := CitedEntries(v, previous)
		assert.False(t, c.Whole)
		assert.Empty(t, c.IDs)
	})

	t.Run("free text feedback", func(t *testing.T) {
		v := models.Verdict{Status: models.VerdictRejected, Feedback: "TC_NEW_2 must assert the lockout message."}
		c := CitedEntries(v, previous)
		assert.True(t, c.Cites("TC_NEW_2"))
		assert.False(t, c.Cites("TC_NEW_1"))
	})

	t.Run("id prefix is not a mention", func(t *testing.T) {
		assert.False(t, mentions("see TC_NEW_10", "TC_NEW_1"))
		assert.True(t, mentions("(TC_NEW_1)", "TC_NEW_1"))
	})

	t.Run("unattributable feedback opens the whole draft", func(t *testing.T) {
		v := models.Verdict{Status: models.VerdictRejected, Feedback: "All steps are vague."}
		assert.True(t, CitedEntries(v, previous).Whole)

		v = models.Reject(models.Issue{Message: "tone is off"})
		assert.True(t, CitedEntries(v, previous).Whole)
	})
}
