package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/intake/internal/clock"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/tracing"
)

var errNotOverdue = errors.New("instance is not overdue")

// Cancel fails a non-terminal instance with reason "cancelled: <reason>" and
// revokes its token. A terminal instance yields a ConflictError.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (ret *model.Instance, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.cancel", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "no reason given"
	}
	var tokenHash string
	ret, err = e.transition(ctx, id, dao.Expect(model.NonTerminal()...), func(i *model.Instance) error {
		tokenHash = i.TokenHash
		return i.Fail(model.ReasonCancelledPrefix+reason, clock.Now())
	})
	if err != nil {
		return nil, err
	}
	e.revoke(ctx, tokenHash)
	return ret, nil
}

// ExpireOverdue fails every suspended instance past its deadline with reason
// decision-timeout. The reviewer is not notified again.
func (e *Engine) ExpireOverdue(ctx context.Context) (count int, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.expire", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	now := clock.Now()
	overdue, err := e.Store.List(ctx, dao.WithStates(model.StateAwaitingDecision), dao.WithDeadlineBefore(now))
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, instance := range overdue {
		tokenHash := instance.TokenHash
		_, stepErr := e.transition(ctx, instance.ID, dao.Expect(model.StateAwaitingDecision).WithToken(tokenHash), func(i *model.Instance) error {
			if !i.Overdue(now) {
				return errNotOverdue
			}
			return i.Fail(model.ReasonDecisionTimeout, now)
		})
		switch {
		case stepErr == nil:
			e.revoke(ctx, tokenHash)
			count++
		case errors.Is(stepErr, dao.ErrConflict), errors.Is(stepErr, errNotOverdue):
			// redeemed or cancelled in the meantime
		default:
			errs = append(errs, fmt.Errorf("instance %v: %w", instance.ID, stepErr))
		}
	}
	if count > 0 {
		e.logger.Info("expired overdue instances", "count", count)
	}
	return count, errors.Join(errs...)
}
