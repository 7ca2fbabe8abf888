package dao

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/model/workflow"
)

func TestExpectation_Check(t *testing.T) {
	instance := workflow.New("i-1", "", nil, time.Now())
	instance.State = workflow.StateAwaitingDecision
	instance.TokenHash = "hash"

	testCases := []struct {
		description string
		expect      Expectation
		conflict    bool
	}{
		{description: "no guard", expect: Expectation{}},
		{description: "matching state", expect: Expect(workflow.StateAwaitingDecision)},
		{description: "one of states", expect: Expect(workflow.StateStarted, workflow.StateAwaitingDecision)},
		{description: "matching token", expect: Expect(workflow.StateAwaitingDecision).WithToken("hash")},
		{description: "state mismatch", expect: Expect(workflow.StateStarted), conflict: true},
		{description: "token mismatch", expect: Expect(workflow.StateAwaitingDecision).WithToken("other"), conflict: true},
	}
	for _, testCase := range testCases {
		err := testCase.expect.Check(instance)
		if !testCase.conflict {
			assert.NoError(t, err, testCase.description)
			continue
		}
		assert.True(t, errors.Is(err, ErrConflict), testCase.description)
	}
}

func TestApply(t *testing.T) {
	current := workflow.New("i-1", "abc", nil, time.Now())
	current.Revision = 3

	next, err := Apply(current, Expect(workflow.StateStarted), func(i *workflow.Instance) error {
		i.ID = "changed"
		i.Identity = "changed"
		i.Artifacts["export"] = "mem://x"
		return i.MoveTo(workflow.StateAwaitingReport, time.Now())
	})
	require.NoError(t, err)
	assert.EqualValues(t, "i-1", next.ID)
	assert.EqualValues(t, "abc", next.Identity)
	assert.EqualValues(t, 4, next.Revision)
	assert.Empty(t, current.Artifacts)
	assert.EqualValues(t, workflow.StateStarted, current.State)

	_, err = Apply(nil, Expectation{}, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{ID: "i-1", Actual: workflow.StateCompleted, Expected: []workflow.State{workflow.StateStarted, workflow.StateFailed}}
	assert.EqualValues(t, "dao: conflict: instance i-1 is completed, expected started|failed", err.Error())
	tokenErr := &ConflictError{ID: "i-1", Actual: workflow.StateAwaitingDecision, Token: true}
	assert.Contains(t, tokenErr.Error(), "token mismatch")
}

func TestStates(t *testing.T) {
	assert.Nil(t, States(nil))
	assert.EqualValues(t, []string{"started"}, States([]*Parameter{NewParameter(ParamState, "started")}))
	assert.EqualValues(t, []string{"a", "b"}, States([]*Parameter{nil, NewParameter(ParamState, "a", "b")}))
	assert.EqualValues(t, []string{"failed"}, States([]*Parameter{WithStates(workflow.StateFailed)}))
}
