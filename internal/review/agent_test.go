package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/trace/internal/draft"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/testutil"
)

var task = models.Task{
	Context: "Login",
	Scenarios: []models.Scenario{
		{Index: 1, Title: "Login with a short password"},
		{Index: 2, Title: "Lockout", LegacyID: "TC_001"},
	},
}

const rules = "DATABASE RULES:\nPasswords must be at least 10 characters."

func parse(t *testing.T, text string) models.Draft {
	t.Helper()
	d, err := draft.Parse(text)
	require.NoError(t, err)
	return d
}

const badDraft = `Test Case ID: TC_NEW_1
Scenario: 1
Title: Short password
Steps:
1. Log in with "abc123" | Expected Result: Login Successful

Test Case ID: TC_001
Scenario: 2
Title: Lockout
Steps:
1. Fail three times | Expected Result: Account locked`

const fixedDraft = `Test Case ID: TC_NEW_1
Scenario: 1
Title: Short password
Steps:
1. Log in with "abc123" | Expected Result: Error: password must be at least 10 characters

Test Case ID: TC_001
Scenario: 2
Title: Lockout
Steps:
1. Fail three times | Expected Result: Account locked`

func TestReviewPasswordRule(t *testing.T) {
	auditor := testutil.Script(
		`{"status":"rejected","issues":[{"entry_id":"TC_NEW_1","scenario":1,"field":"expected","message":"a 6 character password violates the 10 character minimum"}]}`,
		`{"status":"approved","issues":[]}`,
	)
	a := New(auditor)

	v, err := a.Review(context.Background(), task, rules, parse(t, badDraft))
	require.NoError(t, err)
	assert.False(t, v.Approved())
	assert.Contains(t, v.Feedback, "TC_NEW_1")
	assert.Contains(t, v.Feedback, "10 character minimum")

	v, err = a.Review(context.Background(), task, rules, parse(t, fixedDraft))
	require.NoError(t, err)
	assert.True(t, v.Approved())

	reqs := auditor.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].JSON)
	assert.Contains(t, reqs[0].Prompt, "at least 10 characters")
	assert.Contains(t, reqs[0].Prompt, "Login Successful")
}

func TestReviewStructuralSkipsCompletion(t *testing.T) {
	tests := []struct {
		name  string
		draft models.Draft
		field string
	}{
		{
			name:  "unparsed draft",
			draft: models.Draft{Raw: "I could not write test cases."},
			field: "format",
		},
		{
			name: "missing scenario",
			draft: parse(t, `Test Case ID: TC_001
Scenario: 2
Title: Lockout`),
			field: "coverage",
		},
		{
			name: "hallucinated scenario",
			draft: parse(t, badDraft+`

Test Case ID: TC_NEW_9
Scenario: 9
Title: Made up`),
			field: "scenario",
		},
		{
			name: "legacy id not reused",
			draft: parse(t, `Test Case ID: TC_NEW_1
Scenario: 1
Title: Short

Test Case ID: TC_NEW_2
Scenario: 2
Title: Lockout`),
			field: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := testutil.Script(`{"status":"approved"}`)
			v, err := New(auditor).Review(context.Background(), task, rules, tt.draft)
			require.NoError(t, err)
			assert.False(t, v.Approved())
			require.NotEmpty(t, v.Issues)
			assert.Equal(t, tt.field, v.Issues[0].Field)
			assert.Zero(t, auditor.Calls())
		})
	}
}

func TestReviewUnreadableReply(t *testing.T) {
	v, err := New(testutil.Script("looks fine to me")).Review(context.Background(), task, rules, parse(t, badDraft))
	require.NoError(t, err)
	assert.False(t, v.Approved())
	assert.Equal(t, "looks fine to me", v.Feedback)
}

func TestReviewCompletionError(t *testing.T) {
	auditor := testutil.Script().Then("", llm.ErrCompletion)
	_, err := New(auditor).Review(context.Background(), task, rules, parse(t, badDraft))
	assert.ErrorIs(t, err, llm.ErrCompletion)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		approved bool
		feedback string
		wantErr  bool
	}{
		{name: "json approved", raw: `{"status":"approved","issues":[]}`, approved: true},
		{name: "json approved uppercase in fence", raw: "```json\n{\"status\":\"APPROVED\"}\n```", approved: true},
		{
			name:     "approval with issues is a rejection",
			raw:      `{"status":"approved","issues":[{"entry_id":"TC_1","message":"step 2 untraceable"}]}`,
			feedback: "TC_1: step 2 untraceable",
		},
		{
			name:     "json rejected with feedback only",
			raw:      `{"status":"rejected","feedback":"TC_1 ignores the lockout rule"}`,
			feedback: "TC_1 ignores the lockout rule",
		},
		{
			name:     "json issue with field",
			raw:      `{"status":"rejected","issues":[{"scenario":2,"field":"coverage","message":"missing"}]}`,
			feedback: "Scenario 2 [coverage]: missing",
		},
		{name: "status lines approved", raw: "STATUS: APPROVED\nFEEDBACK: none", approved: true},
		{
			name:     "status lines rejected",
			raw:      "**STATUS:** REJECTED\n**FEEDBACK:** TC_NEW_1 expects success for a short password.\nFix it.",
			feedback: "TC_NEW_1 expects success for a short password.\nFix it.",
		},
		{name: "unknown status", raw: `{"status":"maybe"}`, wantErr: true},
		{name: "prose", raw: "I approve of this draft", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.approved, v.Approved())
			if tt.feedback != "" {
				assert.Equal(t, tt.feedback, v.Feedback)
			}
		})
	}
}
