package workflow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/model/field"
	"github.com/viant/intake/model/submission"
)

func TestInstance_Lifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := submission.New(map[string]field.Value{"project_name": field.String("Acme")}, now)
	instance := New("i-1", "", s, now)
	assert.EqualValues(t, StateStarted, instance.State)

	require.NoError(t, instance.MoveTo(StateAwaitingReport, now))
	deadline := now.Add(time.Hour)
	instance.Suspend("hash", deadline, now)
	require.NoError(t, instance.MoveTo(StateAwaitingDecision, now))
	assert.True(t, instance.AwaitingNotification())
	instance.Notified(now)
	assert.False(t, instance.AwaitingNotification())
	require.NotNil(t, instance.NotifiedAt)
	instance.Suspend("hash", deadline, now)
	assert.True(t, instance.AwaitingNotification())
	instance.Notified(now)
	assert.False(t, instance.Overdue(now.Add(59*time.Minute)))
	assert.True(t, instance.Overdue(deadline))

	err := instance.MoveTo(StateCompleted, now)
	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.EqualValues(t, StateAwaitingDecision, transitionErr.From)

	require.NoError(t, instance.Fail(ReasonDecisionTimeout, deadline))
	assert.EqualValues(t, StateFailed, instance.State)
	assert.EqualValues(t, StateAwaitingDecision, instance.FailedFrom)
	assert.EqualValues(t, ReasonDecisionTimeout, instance.Reason)
	assert.Empty(t, instance.TokenHash)
	require.NotNil(t, instance.CompletedAt)
	assert.False(t, instance.Overdue(deadline.Add(time.Hour)))

	assert.Error(t, instance.Fail("again", deadline))
}

func TestInstance_Clone(t *testing.T) {
	now := time.Now()
	instance := New("i-1", "", nil, now)
	instance.Artifacts[ArtifactExport] = "mem://a"

	clone := instance.Clone()
	clone.Artifacts[ArtifactSummary] = "mem://b"
	clone.State = StateFailed
	assert.Len(t, instance.Artifacts, 1)
	assert.EqualValues(t, StateStarted, instance.State)

	var nilInstance *Instance
	assert.Nil(t, nilInstance.Clone())
}

func TestInstance_JSON(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := submission.New(map[string]field.Value{"project_name": field.String("Acme")}, now)
	instance := New("i-1", "abc", s, now)
	instance.Suspend("hash", now.Add(time.Hour), now)

	data, err := json.Marshal(instance)
	require.NoError(t, err)
	decoded := &Instance{}
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.EqualValues(t, "Acme", decoded.Submission.ProjectName())
	assert.True(t, instance.DeadlineAt.Equal(*decoded.DeadlineAt))
	assert.EqualValues(t, "hash", decoded.TokenHash)
}

func TestDownstreamError(t *testing.T) {
	cause := errors.New("smtp down")
	err := NewDownstreamError(ReasonNotificationFailed, cause)
	assert.True(t, errors.Is(err, ErrDownstream))
	assert.True(t, errors.Is(err, cause))
	assert.EqualValues(t, "notification-failed: smtp down", err.Error())
}
