package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/internal/idgen"
	"github.com/viant/intake/model/submission"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/identity"
	"github.com/viant/intake/service/report"
	"github.com/viant/intake/service/scoring"
	"github.com/viant/intake/tracing"
)

// Start creates an instance for s and drives it until it awaits a decision.
// A duplicate submission returns the existing instance with created=false and
// no side effects. When a downstream step fails the failed instance is
// returned together with a DownstreamError.
func (e *Engine) Start(ctx context.Context, s *submission.Submission) (ret *model.Instance, created bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.start", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if s == nil {
		return nil, false, dao.ErrNilEntity
	}
	ident, err := identity.Of(s)
	if err != nil {
		return nil, false, err
	}
	span.WithAttributes(map[string]string{"intake.identity": ident.Short()})
	stored, err := e.Store.PutIfAbsent(ctx, ident, s)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store submission %v: %w", ident.Short(), err)
	}
	instance := model.New(idgen.New(), ident, s, clock.Now())
	if err = e.Store.Create(ctx, instance); err != nil {
		if !errors.Is(err, dao.ErrDuplicate) {
			return nil, false, fmt.Errorf("failed to create instance: %w", err)
		}
		existing, loadErr := e.Store.LoadByIdentity(ctx, ident)
		if loadErr != nil {
			err = fmt.Errorf("failed to load instance for %v: %w", ident.Short(), loadErr)
			return nil, false, err
		}
		e.logger.Info("duplicate submission", "identity", ident.Short(), "id", existing.ID, "state", existing.State)
		e.metrics.Duplicate(ctx)
		e.events.Publish(ctx, event.TypeDuplicate, existing.State, existing)
		return existing, false, nil
	}
	if !stored {
		e.logger.Warn("submission stored without instance, resuming", "identity", ident.Short())
	}
	span.WithAttributes(map[string]string{"intake.instance": instance.ID})
	e.logger.Info("instance created", "id", instance.ID, "identity", ident.Short())
	e.metrics.Submission(ctx)
	e.events.Publish(ctx, event.TypeTransition, "", instance)
	ret, err = e.advance(ctx, instance)
	return ret, true, err
}

// requestDecision scores and renders the submission, mints the continuation
// token, suspends the instance and asks the reviewer for a decision.
func (e *Engine) requestDecision(ctx context.Context, instance *model.Instance) (*model.Instance, error) {
	result, err := e.Scorer.Score(instance.Submission)
	if err != nil {
		return e.fail(ctx, instance, model.ReasonReportFailed, err, nil)
	}
	artifacts, reason, err := e.render(ctx, instance, result)
	if err != nil {
		return e.fail(ctx, instance, reason, err, artifacts)
	}
	now := clock.Now()
	continuation, err := e.Tokens.Mint(instance.ID, now.Add(e.maxPending))
	if err != nil {
		return e.fail(ctx, instance, model.ReasonNotificationFailed, err, artifacts)
	}
	if err = e.Store.BindToken(ctx, continuation.Hash, instance.ID); err != nil {
		return instance, fmt.Errorf("failed to bind token for %v: %w", instance.ID, err)
	}
	suspended, err := e.transition(ctx, instance.ID, dao.Expect(model.StateAwaitingReport), func(i *model.Instance) error {
		i.Score = result
		for role, location := range artifacts {
			i.Artifacts[role] = location
		}
		if err := i.MoveTo(model.StateAwaitingDecision, now); err != nil {
			return err
		}
		i.Suspend(continuation.Hash, continuation.ExpiresAt, now)
		return nil
	})
	if err != nil {
		e.revoke(ctx, continuation.Hash)
		return instance, err
	}
	return e.notifyReviewer(ctx, suspended, continuation.Value)
}

// notifyReviewer sends the decision links of a suspended instance and then
// marks it notified. A send failure fails the instance with notification-failed.
func (e *Engine) notifyReviewer(ctx context.Context, suspended *model.Instance, value string) (*model.Instance, error) {
	message, err := e.Composer.Reviewer(suspended, value)
	if err == nil {
		err = e.Sender.Send(ctx, message)
	}
	if err != nil {
		return e.fail(ctx, suspended, model.ReasonNotificationFailed, err, nil)
	}
	notified, err := e.transition(ctx, suspended.ID, dao.Expect(model.StateAwaitingDecision).WithToken(suspended.TokenHash), func(i *model.Instance) error {
		i.Notified(clock.Now())
		return nil
	})
	if err != nil {
		if errors.Is(err, dao.ErrConflict) {
			// the reviewer acted, or an operator cancelled, before the marker landed
			return e.Store.Load(ctx, suspended.ID)
		}
		return suspended, fmt.Errorf("failed to mark %v notified: %w", suspended.ID, err)
	}
	var total float64
	if notified.Score != nil {
		total = notified.Score.Total
	}
	e.logger.Info("awaiting decision", "id", notified.ID, "score", total, "deadline", notified.DeadlineAt)
	return notified, nil
}

// reissue re-sends the decision links of an instance suspended without a
// confirmed notification. Only the token hash is persisted, so a new token
// with the same deadline replaces the old one.
func (e *Engine) reissue(ctx context.Context, instance *model.Instance) (*model.Instance, error) {
	now := clock.Now()
	if instance.Overdue(now) {
		// left to ExpireOverdue
		return instance, nil
	}
	deadline := now.Add(e.maxPending)
	if instance.DeadlineAt != nil {
		deadline = *instance.DeadlineAt
	}
	continuation, err := e.Tokens.Mint(instance.ID, deadline)
	if err != nil {
		return e.fail(ctx, instance, model.ReasonNotificationFailed, err, nil)
	}
	if err = e.Store.BindToken(ctx, continuation.Hash, instance.ID); err != nil {
		return instance, fmt.Errorf("failed to bind token for %v: %w", instance.ID, err)
	}
	previous := instance.TokenHash
	suspended, err := e.transition(ctx, instance.ID, dao.Expect(model.StateAwaitingDecision).WithToken(previous), func(i *model.Instance) error {
		expiresAt := continuation.ExpiresAt
		i.TokenHash = continuation.Hash
		i.DeadlineAt = &expiresAt
		i.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.revoke(ctx, continuation.Hash)
		return instance, err
	}
	e.revoke(ctx, previous)
	e.logger.Warn("reissuing decision links", "id", instance.ID, "deadline", continuation.ExpiresAt)
	return e.notifyReviewer(ctx, suspended, continuation.Value)
}

// render writes the export and summary artifacts.
func (e *Engine) render(ctx context.Context, instance *model.Instance, result *scoring.Result) (map[string]string, string, error) {
	export, err := report.Export(instance.Submission)
	if err != nil {
		return nil, model.ReasonReportFailed, err
	}
	summary, err := report.Summary(instance.Submission, result)
	if err != nil {
		return nil, model.ReasonReportFailed, err
	}
	ret := map[string]string{}
	for _, doc := range []struct {
		role, name string
		data       []byte
	}{
		{model.ArtifactExport, report.ExportName, export},
		{model.ArtifactSummary, report.SummaryName, summary},
	} {
		location, err := e.Artifacts.Put(ctx, artifact.Path(e.artifactPrefix, instance.ID, doc.name), doc.data)
		if err != nil {
			return ret, model.ReasonArtifactFailed, err
		}
		ret[doc.role] = location
	}
	return ret, "", nil
}
