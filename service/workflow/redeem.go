package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/intake/internal/clock"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/report"
	"github.com/viant/intake/service/token"
	"github.com/viant/intake/tracing"
)

var errDeadlinePassed = errors.New("decision deadline passed")

// Redeem applies a reviewer decision carried by a continuation token and
// drives the chosen branch to completion. Exactly one redemption of a token
// succeeds; any later one fails with a token.Error of kind redeemed that
// also matches dao.ErrConflict.
func (e *Engine) Redeem(ctx context.Context, value string, decision model.Decision) (ret *model.Instance, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.redeem", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
	claims, err := e.Tokens.Verify(value)
	if err != nil {
		return nil, err
	}
	span.WithAttributes(map[string]string{"intake.instance": claims.InstanceID, "intake.decision": string(decision)})
	id, err := e.Store.ResolveToken(ctx, claims.Hash)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, e.staleToken(ctx, claims)
		}
		return nil, err
	}
	if id != claims.InstanceID {
		return nil, token.NewError(token.KindInvalid, fmt.Errorf("token bound to another instance"))
	}
	now := clock.Now()
	decided, err := e.transition(ctx, id, dao.Expect(model.StateAwaitingDecision).WithToken(claims.Hash), func(i *model.Instance) error {
		if i.Overdue(now) {
			return errDeadlinePassed
		}
		if err := i.MoveTo(decision.Target(), now); err != nil {
			return err
		}
		i.Decision = decision
		i.DecidedAt = &now
		i.TokenHash = ""
		return nil
	})
	switch {
	case errors.Is(err, dao.ErrConflict):
		return nil, token.NewError(token.KindRedeemed, err)
	case errors.Is(err, errDeadlinePassed):
		return nil, token.NewError(token.KindExpired, err)
	case err != nil:
		return nil, err
	}
	e.revoke(ctx, claims.Hash)
	e.metrics.Decision(ctx, string(decision))
	e.logger.Info("decision recorded", "id", id, "decision", decision)
	return e.advance(ctx, decided)
}

// staleToken classifies a verified token whose index entry is gone.
func (e *Engine) staleToken(ctx context.Context, claims *token.Claims) error {
	instance, err := e.Store.Load(ctx, claims.InstanceID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return token.NewError(token.KindUnknown, err)
		}
		return err
	}
	switch {
	case instance.Reason == model.ReasonDecisionTimeout:
		return token.NewError(token.KindExpired, errDeadlinePassed)
	case instance.Decision != "" || instance.State.IsTerminal():
		return token.NewError(token.KindRedeemed, &dao.ConflictError{ID: instance.ID, Actual: instance.State, Expected: []model.State{model.StateAwaitingDecision}})
	}
	return token.NewError(token.KindUnknown, fmt.Errorf("token not issued for instance %v", instance.ID))
}

// complete runs the approve or waitlist branch.
func (e *Engine) complete(ctx context.Context, instance *model.Instance) (*model.Instance, error) {
	artifacts := map[string]string{}
	if instance.State == model.StateApproving {
		followUp, err := report.FollowUp(instance.Submission, instance.Score)
		if err != nil {
			return e.fail(ctx, instance, model.ReasonReportFailed, err, nil)
		}
		location, err := e.Artifacts.Put(ctx, artifact.Path(e.artifactPrefix, instance.ID, report.FollowUpName), followUp)
		if err != nil {
			return e.fail(ctx, instance, model.ReasonArtifactFailed, err, nil)
		}
		artifacts[model.ArtifactFollowUp] = location
	}
	message, err := e.Composer.Applicant(instance, instance.Decision)
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		e.logger.Warn("applicant has no contact email, skipping notification", "id", instance.ID)
	case err != nil:
		return e.fail(ctx, instance, model.ReasonNotificationFailed, err, artifacts)
	default:
		if err = e.Sender.Send(ctx, message); err != nil {
			return e.fail(ctx, instance, model.ReasonNotificationFailed, err, artifacts)
		}
	}
	return e.transition(ctx, instance.ID, dao.Expect(instance.State), func(i *model.Instance) error {
		for role, location := range artifacts {
			i.Artifacts[role] = location
		}
		return i.MoveTo(model.StateCompleted, clock.Now())
	})
}
