// Package daotest holds the behaviour every dao.Store backend must share.
package daotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/model/field"
	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/identity"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) dao.Store

// Run exercises newStore against the shared store contract.
func Run(t *testing.T, newStore Factory) {
	testCases := []struct {
		description string
		run         func(t *testing.T, store dao.Store)
	}{
		{description: "submissions", run: testSubmissions},
		{description: "create and load", run: testCreate},
		{description: "transition", run: testTransition},
		{description: "list", run: testList},
		{description: "tokens", run: testTokens},
		{description: "concurrent transition", run: testConcurrentTransition},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			store := newStore(t)
			defer func() { _ = store.Close() }()
			testCase.run(t, store)
		})
	}
}

// NewSubmission returns a submission whose identity depends on seed.
func NewSubmission(seed string) (*submission.Submission, identity.Identity) {
	s := submission.New(map[string]field.Value{
		submission.FieldOrganizationName: field.String("Org " + seed),
		submission.FieldProjectName:      field.String("Project " + seed),
		"team_size":                      field.Number(3),
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	id, err := identity.Of(s)
	if err != nil {
		panic(err)
	}
	return s, id
}

// NewInstance returns a started instance for seed created at createdAt.
func NewInstance(seed string, createdAt time.Time) *workflow.Instance {
	s, id := NewSubmission(seed)
	return workflow.New("instance-"+seed, id, s, createdAt)
}

func testSubmissions(t *testing.T, store dao.Store) {
	ctx := context.Background()
	s, id := NewSubmission("a")

	stored, err := store.PutIfAbsent(ctx, id, s)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = store.PutIfAbsent(ctx, id, s)
	require.NoError(t, err)
	assert.False(t, stored)

	loaded, err := store.LoadSubmission(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, s.Names(), loaded.Names())
	assert.EqualValues(t, "Org a", loaded.OrganizationName())
	reloaded, err := identity.Of(loaded)
	require.NoError(t, err)
	assert.EqualValues(t, id, reloaded)

	_, err = store.PutIfAbsent(ctx, identity.Identity("short"), s)
	assert.True(t, errors.Is(err, dao.ErrInvalidID))

	_, missing := NewSubmission("missing")
	_, err = store.LoadSubmission(ctx, missing)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func testCreate(t *testing.T, store dao.Store) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	instance := NewInstance("a", now)
	require.NoError(t, store.Create(ctx, instance))

	loaded, err := store.Load(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, instance.ID, loaded.ID)
	assert.EqualValues(t, instance.Identity, loaded.Identity)
	assert.EqualValues(t, workflow.StateStarted, loaded.State)
	assert.EqualValues(t, 0, loaded.Revision)
	assert.True(t, now.Equal(loaded.CreatedAt))
	require.NotNil(t, loaded.Submission)
	assert.EqualValues(t, "Project a", loaded.Submission.ProjectName())

	byIdentity, err := store.LoadByIdentity(ctx, instance.Identity)
	require.NoError(t, err)
	assert.EqualValues(t, instance.ID, byIdentity.ID)

	sameID := NewInstance("b", now)
	sameID.ID = instance.ID
	assert.True(t, errors.Is(store.Create(ctx, sameID), dao.ErrDuplicate))

	sameIdentity := NewInstance("a", now)
	sameIdentity.ID = "instance-other"
	assert.True(t, errors.Is(store.Create(ctx, sameIdentity), dao.ErrDuplicate))

	_, err = store.Load(ctx, "instance-missing")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	_, missing := NewSubmission("missing")
	_, err = store.LoadByIdentity(ctx, missing)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	assert.Error(t, store.Create(ctx, nil))
}

func testTransition(t *testing.T, store dao.Store) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	instance := NewInstance("a", now)
	require.NoError(t, store.Create(ctx, instance))

	next, err := store.Transition(ctx, instance.ID, dao.Expect(workflow.StateStarted), func(i *workflow.Instance) error {
		return i.MoveTo(workflow.StateAwaitingReport, now.Add(time.Second))
	})
	require.NoError(t, err)
	assert.EqualValues(t, workflow.StateAwaitingReport, next.State)
	assert.EqualValues(t, 1, next.Revision)

	_, err = store.Transition(ctx, instance.ID, dao.Expect(workflow.StateStarted), func(i *workflow.Instance) error {
		return i.MoveTo(workflow.StateAwaitingReport, now)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dao.ErrConflict))
	var conflict *dao.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.EqualValues(t, workflow.StateAwaitingReport, conflict.Actual)

	deadline := now.Add(time.Hour)
	next, err = store.Transition(ctx, instance.ID, dao.Expect(workflow.StateAwaitingReport), func(i *workflow.Instance) error {
		i.Suspend("hash-1", deadline, now)
		return i.MoveTo(workflow.StateAwaitingDecision, now)
	})
	require.NoError(t, err)
	assert.EqualValues(t, "hash-1", next.TokenHash)

	_, err = store.Transition(ctx, instance.ID, dao.Expect(workflow.StateAwaitingDecision).WithToken("hash-2"), nil)
	assert.True(t, errors.Is(err, dao.ErrConflict))

	failing := errors.New("mutation failed")
	_, err = store.Transition(ctx, instance.ID, dao.Expect(workflow.StateAwaitingDecision), func(i *workflow.Instance) error {
		return failing
	})
	assert.True(t, errors.Is(err, failing))

	loaded, err := store.Load(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, workflow.StateAwaitingDecision, loaded.State)
	assert.EqualValues(t, 2, loaded.Revision)
	require.NotNil(t, loaded.DeadlineAt)
	assert.True(t, deadline.Equal(*loaded.DeadlineAt))

	_, err = store.Transition(ctx, "instance-missing", dao.Expectation{}, nil)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func testList(t *testing.T, store dao.Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, seed := range []string{"c", "a", "b"} {
		require.NoError(t, store.Create(ctx, NewInstance(seed, base.Add(time.Duration(i)*time.Minute))))
	}
	suspend := func(id string, deadline time.Time) {
		_, err := store.Transition(ctx, id, dao.Expectation{}, func(i *workflow.Instance) error {
			if err := i.MoveTo(workflow.StateAwaitingReport, base); err != nil {
				return err
			}
			i.Suspend("hash-"+id, deadline, base)
			return i.MoveTo(workflow.StateAwaitingDecision, base)
		})
		require.NoError(t, err)
	}
	suspend("instance-a", base.Add(time.Hour))
	suspend("instance-b", base.Add(2*time.Hour))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, []string{"instance-c", "instance-a", "instance-b"}, ids(all))

	started, err := store.List(ctx, dao.WithStates(workflow.StateStarted))
	require.NoError(t, err)
	assert.EqualValues(t, []string{"instance-c"}, ids(started))

	awaiting, err := store.List(ctx, dao.WithStates(workflow.StateAwaitingDecision, workflow.StateStarted))
	require.NoError(t, err)
	assert.Len(t, awaiting, 3)

	overdue, err := store.List(ctx, dao.WithStates(workflow.StateAwaitingDecision), dao.WithDeadlineBefore(base.Add(90*time.Minute)))
	require.NoError(t, err)
	assert.EqualValues(t, []string{"instance-a"}, ids(overdue))

	none, err := store.List(ctx, dao.WithStates(workflow.StateCompleted))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTokens(t *testing.T, store dao.Store) {
	ctx := context.Background()
	require.NoError(t, store.BindToken(ctx, "hash-1", "instance-a"))

	id, err := store.ResolveToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.EqualValues(t, "instance-a", id)

	require.NoError(t, store.RevokeToken(ctx, "hash-1"))
	_, err = store.ResolveToken(ctx, "hash-1")
	assert.True(t, errors.Is(err, dao.ErrNotFound))

	assert.NoError(t, store.RevokeToken(ctx, "hash-unknown"))
	assert.True(t, errors.Is(store.BindToken(ctx, "", "instance-a"), dao.ErrInvalidID))
}

func testConcurrentTransition(t *testing.T, store dao.Store) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	instance := NewInstance("a", now)
	require.NoError(t, store.Create(ctx, instance))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Transition(ctx, instance.ID, dao.Expect(workflow.StateStarted), func(inst *workflow.Instance) error {
				inst.Reason = fmt.Sprintf("worker-%d", i)
				return inst.MoveTo(workflow.StateAwaitingReport, now)
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, dao.ErrConflict), err.Error())
	}
	assert.EqualValues(t, 1, succeeded)

	loaded, err := store.Load(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, loaded.Revision)
}

func ids(instances []*workflow.Instance) []string {
	ret := make([]string, 0, len(instances))
	for _, instance := range instances {
		ret = append(ret, instance.ID)
	}
	return ret
}
