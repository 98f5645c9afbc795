package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/loanrules/internal/eligibility"
	"github.com/TimurManjosov/loanrules/internal/rules"
	"github.com/TimurManjosov/loanrules/internal/store"
	"github.com/TimurManjosov/loanrules/internal/testutil"
)

func newTestClient(t *testing.T, apiKey string) *Client {
	t.Helper()
	handler, _ := testutil.NewTestServer(t, "secret")
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", apiKey, "acme")
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "secret")

	for _, p := range []store.Program{
		{ID: "p1", Name: "Conventional", Active: true},
		{ID: "p2", Name: "FHA", Active: true},
		{ID: "p3", Name: "Retired", Active: false},
	} {
		saved, err := c.UpsertProgram(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p.Active, saved.Active)
	}

	rule, err := c.UpsertProgramRule(ctx, rules.ProgramRule{
		Conditions: []rules.Condition{{Field: "fico", Operator: rules.OpLessThan, Value: 620}},
		Outcome:    rules.ProgramOutcome{ExcludeProgramID: "p2"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, rules.CombinatorAnd, rule.Combinator)

	_, err = c.UpsertDocumentRule(ctx, rules.DocumentRule{
		ID:      "hide-5",
		Outcome: rules.DocumentOutcome{TargetDocTypeID: 5, Action: rules.ActionHide},
	})
	require.NoError(t, err)

	programs, err := c.ListPrograms(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, programs, 2)

	programs, err = c.ListPrograms(ctx, rules.Inputs{"fico": 600})
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "p1", programs[0].ID)

	result, err := c.EligiblePrograms(ctx, rules.Inputs{"fico": 600})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"p2": {rule.ID}}, result.Excluded)

	docs, err := c.EvaluateDocuments(ctx, rules.Inputs{}, []int{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, docs.HiddenDocTypes.Sorted())
	assert.Equal(t, eligibility.DisplayHidden, docs.Display[5])
	assert.Equal(t, eligibility.DisplayVisible, docs.Display[6])

	rs, err := c.RuleSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, rs.ProgramRules, 1)
	assert.Len(t, rs.DocumentRules, 1)
	assert.NotEmpty(t, rs.ETag)

	require.NoError(t, c.DeleteProgramRule(ctx, rule.ID))
	require.NoError(t, c.DeleteDocumentRule(ctx, "hide-5"))
}

func TestClient_APIError(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "wrong")

	_, err := c.UpsertProgramRule(ctx, rules.ProgramRule{
		Outcome: rules.ProgramOutcome{ExcludeProgramID: "p1"},
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)

	c.APIKey = "secret"
	err = c.DeleteProgramRule(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.UpsertDocumentRule(ctx, rules.DocumentRule{
		ID:      "bad",
		Outcome: rules.DocumentOutcome{TargetDocTypeID: 0, Action: rules.ActionHide},
	})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Fields)
}
