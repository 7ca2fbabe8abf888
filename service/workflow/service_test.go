package workflow

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/model/field"
	"github.com/viant/intake/model/rubric"
	"github.com/viant/intake/model/submission"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/dao/memory"
	"github.com/viant/intake/service/identity"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/report"
	"github.com/viant/intake/service/scoring"
	"github.com/viant/intake/service/token"
)

const reviewer = "reviewer@example.com"

const testRubric = `
dimensions:
  team: 2
  market: 1
questions:
  - id: experience
    field: experience
    dimension: team
    weight: 2
    choices:
      "yes": 4
      "no": 0
  - id: market_size
    field: market_size
    dimension: market
    weight: 1
    choices:
      small: 1
      large: 5
`

type fixture struct {
	engine    *Engine
	store     *memory.Service
	sender    *notify.Memory
	artifacts artifact.Store
}

type fixtureOption func(*Components, *[]Option)

func withArtifacts(store artifact.Store) fixtureOption {
	return func(c *Components, _ *[]Option) { c.Artifacts = store }
}

func withScorer(scorer *scoring.Service) fixtureOption {
	return func(c *Components, _ *[]Option) { c.Scorer = scorer }
}

func withOptions(options ...Option) fixtureOption {
	return func(_ *Components, o *[]Option) { *o = append(*o, options...) }
}

func newRubric(t *testing.T) *rubric.Rubric {
	r, err := rubric.Decode([]byte(testRubric))
	require.NoError(t, err)
	return r
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	tokens, err := token.New([]byte("0123456789abcdef-test-secret"))
	require.NoError(t, err)
	ret := &fixture{
		store:     memory.New(),
		sender:    notify.NewMemory(),
		artifacts: artifact.NewFileStore("mem://localhost/workflow/"+uuid.New().String(), nil),
	}
	components := Components{
		Store:     ret.store,
		Scorer:    scoring.New(newRubric(t)),
		Tokens:    tokens,
		Artifacts: ret.artifacts,
		Sender:    ret.sender,
		Composer:  notify.NewComposer("http://localhost:8080", []string{reviewer}),
	}
	var options []Option
	for _, opt := range opts {
		opt(&components, &options)
	}
	ret.engine, err = New(components, options...)
	require.NoError(t, err)
	return ret
}

func newSubmission(project, contact string) *submission.Submission {
	fields := map[string]field.Value{
		submission.FieldProjectName:      field.String(project),
		submission.FieldOrganizationName: field.String("Acme"),
		"experience":                     field.String("yes"),
		"market_size":                    field.String("large"),
	}
	if contact != "" {
		fields[submission.FieldContactEmail] = field.String(contact)
	}
	return submission.New(fields, time.Now())
}

var approveLink = regexp.MustCompile(`/approve\?token=(\S+)`)

// reviewerToken extracts the continuation token from the latest reviewer message.
func (f *fixture) reviewerToken(t *testing.T) string {
	messages := f.sender.SentTo(reviewer)
	require.NotEmpty(t, messages)
	match := approveLink.FindStringSubmatch(messages[len(messages)-1].Body)
	require.Len(t, match, 2)
	value, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return value
}

func withClock(t *testing.T, at time.Time) {
	previous := clock.NowFunc
	clock.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { clock.NowFunc = previous })
}

func TestNew_MissingComponents(t *testing.T) {
	_, err := New(Components{})
	assert.Error(t, err)
}

func TestEngine_Start(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	instance, created, err := f.engine.Start(ctx, newSubmission("Acme Water", "ceo@acme.test"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, model.StateAwaitingDecision, instance.State)
	require.NotNil(t, instance.Score)
	assert.EqualValues(t, 100, instance.Score.Total)
	assert.NotEmpty(t, instance.TokenHash)
	require.NotNil(t, instance.DeadlineAt)
	assert.Contains(t, instance.Artifacts, model.ArtifactExport)
	assert.Contains(t, instance.Artifacts, model.ArtifactSummary)

	summary, err := f.artifacts.Get(ctx, artifact.Path("", instance.ID, report.SummaryName))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Acme Water")

	value := f.reviewerToken(t)
	id, err := f.store.ResolveToken(ctx, mustVerify(t, f, value).Hash)
	require.NoError(t, err)
	assert.EqualValues(t, instance.ID, id)

	persisted, err := f.engine.Instance(ctx, instance.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateAwaitingDecision, persisted.State)
	assert.EqualValues(t, 3, persisted.Revision)
	assert.NotNil(t, persisted.NotifiedAt)
	assert.False(t, persisted.AwaitingNotification())
}

func mustVerify(t *testing.T, f *fixture, value string) *token.Claims {
	claims, err := f.engine.Tokens.Verify(value)
	require.NoError(t, err)
	return claims
}

func TestEngine_Start_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, created, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	assert.False(t, created)
	assert.EqualValues(t, first.ID, second.ID)
	assert.Len(t, f.sender.SentTo(reviewer), 1)

	instances, err := f.engine.Instances(ctx)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestEngine_Start_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan string, workers)
	createdCount := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instance, created, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
			assert.NoError(t, err)
			ids <- instance.ID
			createdCount <- created
		}()
	}
	wg.Wait()
	close(ids)
	close(createdCount)

	unique := map[string]bool{}
	for id := range ids {
		unique[id] = true
	}
	created := 0
	for c := range createdCount {
		if c {
			created++
		}
	}
	assert.Len(t, unique, 1)
	assert.EqualValues(t, 1, created)
	assert.Len(t, f.sender.SentTo(reviewer), 1)
}

func TestEngine_Redeem(t *testing.T) {
	testCases := []struct {
		description string
		decision    model.Decision
		contact     string
		followUp    bool
		applicant   int
	}{
		{description: "approve with applicant email", decision: model.DecisionApprove, contact: "ceo@acme.test", followUp: true, applicant: 1},
		{description: "waitlist with applicant email", decision: model.DecisionWaitlist, contact: "ceo@acme.test", applicant: 1},
		{description: "approve without applicant email", decision: model.DecisionApprove, followUp: true},
	}
	for _, testCase := range testCases {
		ctx := context.Background()
		f := newFixture(t)
		started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", testCase.contact))
		require.NoError(t, err, testCase.description)

		completed, err := f.engine.Redeem(ctx, f.reviewerToken(t), testCase.decision)
		require.NoError(t, err, testCase.description)
		assert.EqualValues(t, started.ID, completed.ID, testCase.description)
		assert.EqualValues(t, model.StateCompleted, completed.State, testCase.description)
		assert.EqualValues(t, testCase.decision, completed.Decision, testCase.description)
		assert.Empty(t, completed.TokenHash, testCase.description)
		assert.NotNil(t, completed.DecidedAt, testCase.description)
		_, hasFollowUp := completed.Artifacts[model.ArtifactFollowUp]
		assert.EqualValues(t, testCase.followUp, hasFollowUp, testCase.description)
		if testCase.contact != "" {
			assert.Len(t, f.sender.SentTo(testCase.contact), testCase.applicant, testCase.description)
		}
	}
}

func TestEngine_Redeem_SingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	value := f.reviewerToken(t)

	approved, err := f.engine.Redeem(ctx, value, model.DecisionApprove)
	require.NoError(t, err)

	_, err = f.engine.Redeem(ctx, value, model.DecisionWaitlist)
	require.Error(t, err)
	assert.EqualValues(t, token.KindRedeemed, token.KindOf(err))
	assert.True(t, errors.Is(err, dao.ErrConflict))

	persisted, err := f.engine.Instance(ctx, approved.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.DecisionApprove, persisted.Decision)
}

func TestEngine_Redeem_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	value := f.reviewerToken(t)

	const workers = 10
	type outcome struct {
		decision model.Decision
		err      error
	}
	outcomes := make(chan outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		decision := model.DecisionApprove
		if i%2 == 1 {
			decision = model.DecisionWaitlist
		}
		wg.Add(1)
		go func(decision model.Decision) {
			defer wg.Done()
			_, err := f.engine.Redeem(ctx, value, decision)
			outcomes <- outcome{decision: decision, err: err}
		}(decision)
	}
	wg.Wait()
	close(outcomes)

	var winners []model.Decision
	for o := range outcomes {
		if o.err == nil {
			winners = append(winners, o.decision)
			continue
		}
		assert.EqualValues(t, token.KindRedeemed, token.KindOf(o.err), o.err.Error())
	}
	require.Len(t, winners, 1)

	persisted, err := f.engine.Instance(ctx, started.ID)
	require.NoError(t, err)
	assert.EqualValues(t, winners[0], persisted.Decision)
	assert.EqualValues(t, model.StateCompleted, persisted.State)
}

func TestEngine_Redeem_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	foreign, err := token.New([]byte("another-secret-of-length"))
	require.NoError(t, err)
	unbound, err := f.engine.Tokens.Mint("instance-unknown", time.Now().Add(time.Hour))
	require.NoError(t, err)
	forged, err := foreign.Mint("instance-unknown", time.Now().Add(time.Hour))
	require.NoError(t, err)

	testCases := []struct {
		description string
		value       string
		decision    model.Decision
		kind        token.Kind
		target      error
	}{
		{description: "unknown decision", value: unbound.Value, decision: model.Decision("reject"), target: ErrInvalidDecision},
		{description: "missing token", value: "", decision: model.DecisionApprove, kind: token.KindMissing},
		{description: "garbage token", value: "abc", decision: model.DecisionApprove, kind: token.KindInvalid},
		{description: "foreign signature", value: forged.Value, decision: model.DecisionApprove, kind: token.KindInvalid},
		{description: "never bound", value: unbound.Value, decision: model.DecisionApprove, kind: token.KindUnknown},
	}
	for _, testCase := range testCases {
		_, err := f.engine.Redeem(ctx, testCase.value, testCase.decision)
		require.Error(t, err, testCase.description)
		if testCase.target != nil {
			assert.True(t, errors.Is(err, testCase.target), testCase.description)
			continue
		}
		assert.EqualValues(t, testCase.kind, token.KindOf(err), testCase.description)
	}
}

func TestEngine_ExpireOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withOptions(WithMaxPendingLifetime(time.Hour)))
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	value := f.reviewerToken(t)

	count, err := f.engine.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	withClock(t, time.Now().Add(2*time.Hour))
	count, err = f.engine.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	expired, err := f.engine.Instance(ctx, started.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateFailed, expired.State)
	assert.EqualValues(t, model.ReasonDecisionTimeout, expired.Reason)
	assert.EqualValues(t, model.StateAwaitingDecision, expired.FailedFrom)

	_, err = f.engine.Redeem(ctx, value, model.DecisionApprove)
	assert.EqualValues(t, token.KindExpired, token.KindOf(err))

	count, err = f.engine.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Len(t, f.sender.SentTo(reviewer), 1)
}

func TestEngine_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	value := f.reviewerToken(t)

	cancelled, err := f.engine.Cancel(ctx, started.ID, " spam ")
	require.NoError(t, err)
	assert.EqualValues(t, model.StateFailed, cancelled.State)
	assert.EqualValues(t, "cancelled: spam", cancelled.Reason)

	_, err = f.engine.Redeem(ctx, value, model.DecisionApprove)
	assert.EqualValues(t, token.KindRedeemed, token.KindOf(err))

	_, err = f.engine.Cancel(ctx, started.ID, "again")
	assert.True(t, errors.Is(err, dao.ErrConflict))

	_, err = f.engine.Cancel(ctx, "missing", "")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestEngine_NotificationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.Fail(errors.New("smtp unavailable"))

	instance, created, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.Error(t, err)
	assert.True(t, created)
	assert.True(t, errors.Is(err, model.ErrDownstream))
	require.NotNil(t, instance)
	assert.EqualValues(t, model.StateFailed, instance.State)
	assert.EqualValues(t, model.ReasonNotificationFailed, instance.Reason)
	assert.EqualValues(t, model.StateAwaitingDecision, instance.FailedFrom)
	assert.Empty(t, instance.TokenHash)

	instances, err := f.engine.Instances(ctx, dao.WithStates(model.StateAwaitingDecision))
	require.NoError(t, err)
	assert.Empty(t, instances)
}

type failingArtifacts struct{}

func (failingArtifacts) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingArtifacts) Get(context.Context, string) ([]byte, error) {
	return nil, artifact.ErrNotFound
}

func TestEngine_DownstreamFailures(t *testing.T) {
	testCases := []struct {
		description string
		options     []fixtureOption
		payload     *submission.Submission
		reason      string
	}{
		{
			description: "artifact store failure",
			options:     []fixtureOption{withArtifacts(failingArtifacts{})},
			payload:     newSubmission("Acme Water", ""),
			reason:      model.ReasonArtifactFailed,
		},
		{
			description: "strict scoring rejects an answer",
			payload: submission.New(map[string]field.Value{
				submission.FieldProjectName: field.String("Acme Water"),
				"experience":                field.String("maybe"),
				"market_size":               field.String("large"),
			}, time.Now()),
			reason: model.ReasonReportFailed,
		},
	}
	for _, testCase := range testCases {
		options := testCase.options
		if testCase.reason == model.ReasonReportFailed {
			options = append(options, withScorer(scoring.New(newRubric(t), scoring.WithStrictAnswers(true))))
		}
		f := newFixture(t, options...)
		instance, _, err := f.engine.Start(context.Background(), testCase.payload)
		require.Error(t, err, testCase.description)
		assert.True(t, errors.Is(err, model.ErrDownstream), testCase.description)
		assert.EqualValues(t, model.StateFailed, instance.State, testCase.description)
		assert.EqualValues(t, testCase.reason, instance.Reason, testCase.description)
		assert.EqualValues(t, model.StateAwaitingReport, instance.FailedFrom, testCase.description)
		assert.Empty(t, f.sender.Messages(), testCase.description)
	}
}

func TestEngine_Recover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	pending := newSubmission("Interrupted", "")
	pendingID, err := identity.Of(pending)
	require.NoError(t, err)
	_, err = f.store.PutIfAbsent(ctx, pendingID, pending)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(ctx, model.New("instance-started", pendingID, pending, now)))

	approving := newSubmission("Approved before crash", "ceo@acme.test")
	approvingID, err := identity.Of(approving)
	require.NoError(t, err)
	decided := model.New("instance-approving", approvingID, approving, now)
	decided.State = model.StateApproving
	decided.Decision = model.DecisionApprove
	decided.Score, err = scoring.New(newRubric(t)).Score(approving)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(ctx, decided))

	count, err := f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	resumed, err := f.engine.Instance(ctx, "instance-started")
	require.NoError(t, err)
	assert.EqualValues(t, model.StateAwaitingDecision, resumed.State)
	assert.Len(t, f.sender.SentTo(reviewer), 1)

	completed, err := f.engine.Instance(ctx, "instance-approving")
	require.NoError(t, err)
	assert.EqualValues(t, model.StateCompleted, completed.State)
	assert.Len(t, f.sender.SentTo("ceo@acme.test"), 1)

	count, err = f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestEngine_Start_UnscorableAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := submission.New(map[string]field.Value{
		submission.FieldProjectName: field.String("Acme Water"),
		"experience":                field.String("maybe"),
		"market_size":               field.String("large"),
	}, time.Now())

	instance, _, err := f.engine.Start(ctx, s)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateAwaitingDecision, instance.State)
	require.NotNil(t, instance.Score)
	assert.EqualValues(t, 0, instance.Score.Dimensions["team"])
	assert.EqualValues(t, 100, instance.Score.Dimensions["market"])
	assert.EqualValues(t, 24, instance.Score.Total)
	require.Len(t, instance.Score.Diagnostics, 1)
	assert.EqualValues(t, scoring.ReasonUnmatched, instance.Score.Diagnostics[0].Reason)
}

// unnotify simulates a crash between suspension and the reviewer email.
func (f *fixture) unnotify(t *testing.T, id string) *model.Instance {
	instance, err := f.store.Transition(context.Background(), id, dao.Expect(model.StateAwaitingDecision), func(i *model.Instance) error {
		i.NotifiedAt = nil
		return nil
	})
	require.NoError(t, err)
	return instance
}

func TestEngine_Recover_UnnotifiedSuspension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	stale := f.reviewerToken(t)
	suspended := f.unnotify(t, started.ID)

	count, err := f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	require.Len(t, f.sender.SentTo(reviewer), 2)

	resumed, err := f.engine.Instance(ctx, started.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateAwaitingDecision, resumed.State)
	assert.NotNil(t, resumed.NotifiedAt)
	assert.NotEqual(t, suspended.TokenHash, resumed.TokenHash)
	assert.True(t, suspended.DeadlineAt.Equal(*resumed.DeadlineAt))

	_, err = f.engine.Redeem(ctx, stale, model.DecisionApprove)
	assert.EqualValues(t, token.KindUnknown, token.KindOf(err))

	completed, err := f.engine.Redeem(ctx, f.reviewerToken(t), model.DecisionWaitlist)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateCompleted, completed.State)

	count, err = f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestEngine_Recover_NotifiedSuspensionUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)

	count, err := f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Len(t, f.sender.SentTo(reviewer), 1)

	persisted, err := f.engine.Instance(ctx, started.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, persisted.Revision)
}

func TestEngine_Recover_ResendFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started, _, err := f.engine.Start(ctx, newSubmission("Acme Water", ""))
	require.NoError(t, err)
	f.unnotify(t, started.ID)
	f.sender.Fail(errors.New("smtp unavailable"))

	count, err := f.engine.Recover(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	failed, err := f.engine.Instance(ctx, started.ID)
	require.NoError(t, err)
	assert.EqualValues(t, model.StateFailed, failed.State)
	assert.EqualValues(t, model.ReasonNotificationFailed, failed.Reason)
	assert.Empty(t, failed.TokenHash)
}
