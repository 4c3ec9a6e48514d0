package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

const twoEntries = `Here are the test cases:

**Test Case ID:** TC_NEW_1
**Scenario:** 1 - Valid login
Title: Verify login with a valid password
Preconditions: User account exists
Steps:
1. Enter a 12 character password | Expected Result: Password accepted
2. Click Login | Expected Result: Login Successful
Cleanup: Log out

### Test Case ID: TC_001
Scenario: #2
Title: Verify lockout
Steps:
1. Enter a wrong password three times | Expected Result: Account locked`

func TestParse(t *testing.T) {
	d, err := Parse(twoEntries)
	require.NoError(t, err)
	require.Len(t, d.Entries, 2)

	first := d.Entries[0]
	assert.Equal(t, "TC_NEW_1", first.ID)
	assert.Equal(t, "1", first.Scenario)
	assert.Equal(t, "Verify login with a valid password", first.Title)
	assert.True(t, len(first.Raw) > 0)
	assert.Contains(t, first.Raw, "Cleanup: Log out")
	assert.NotContains(t, first.Raw, "TC_001")

	second := d.Entries[1]
	assert.Equal(t, "TC_001", second.ID)
	assert.Equal(t, "2", second.Scenario)
	assert.Equal(t, "### Test Case ID: TC_001\nScenario: #2\nTitle: Verify lockout\nSteps:\n1. Enter a wrong password three times | Expected Result: Account locked", second.Raw)

	again, err := Parse(d.Text())
	require.NoError(t, err)
	assert.Equal(t, d, again, "rendering and parsing round-trips")
}

func TestParseFenced(t *testing.T) {
	d, err := Parse("```\nTest Case ID: TC_NEW_1\nScenario: 1\nTitle: x\n```")
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, "Test Case ID: TC_NEW_1\nScenario: 1\nTitle: x", d.Entries[0].Raw)
}

func TestParseMalformedKeepsRaw(t *testing.T) {
	d, err := Parse("I could not write test cases for this.")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMalformedOutput)
	assert.False(t, d.Parsed())
	assert.Equal(t, "I could not write test cases for this.", d.Raw)
	assert.Equal(t, d.Raw, d.Text())
}

func TestDescribe(t *testing.T) {
	d, err := Parse(twoEntries)
	require.NoError(t, err)

	details := Describe(d.Entries[0])
	assert.Equal(t, "User account exists", details.Preconditions)
	assert.Equal(t, "Log out", details.Cleanup)
	assert.Equal(t, []Step{
		{Action: "Enter a 12 character password", Expected: "Password accepted"},
		{Action: "Click Login", Expected: "Login Successful"},
	}, details.Steps)

	bare := Describe(models.DraftEntry{Raw: "Test Case ID: X\n1) Open page"})
	assert.Equal(t, []Step{{Action: "Open page"}}, bare.Steps)
}

func TestScenarioRef(t *testing.T) {
	assert.Equal(t, "2", scenarioRef("2 - Login lockout"))
	assert.Equal(t, "3", scenarioRef(" #3"))
	assert.Equal(t, "Login", scenarioRef("Login"))
}
