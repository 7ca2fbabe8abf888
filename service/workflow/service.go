// Package workflow drives intake instances through scoring, reviewer
// suspension and the approve or waitlist branch.
//
// The engine keeps no in-memory state between calls: every step reads the
// persisted instance and advances it with a store compare-and-swap, so a
// suspended instance survives restarts and a decision applies exactly once.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/internal/metrics"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/artifact"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/notify"
	"github.com/viant/intake/service/scoring"
	"github.com/viant/intake/service/token"
	"github.com/viant/intake/tracing"
)

// DefaultMaxPendingLifetime is how long an instance waits for a decision.
const DefaultMaxPendingLifetime = 365 * 24 * time.Hour

// ErrInvalidDecision is returned by Redeem for an unknown decision value.
var ErrInvalidDecision = errors.New("invalid decision")

// Components are the collaborators the engine needs.
type Components struct {
	Store     dao.Store
	Scorer    *scoring.Service
	Tokens    *token.Service
	Artifacts artifact.Store
	Sender    notify.Sender
	Composer  *notify.Composer
}

func (c *Components) validate() error {
	switch {
	case c.Store == nil:
		return fmt.Errorf("workflow: store is required")
	case c.Scorer == nil:
		return fmt.Errorf("workflow: scorer is required")
	case c.Tokens == nil:
		return fmt.Errorf("workflow: token service is required")
	case c.Artifacts == nil:
		return fmt.Errorf("workflow: artifact store is required")
	case c.Sender == nil:
		return fmt.Errorf("workflow: notification sender is required")
	case c.Composer == nil:
		return fmt.Errorf("workflow: message composer is required")
	}
	return nil
}

// Engine is the durable intake state machine.
type Engine struct {
	Components
	events         *event.Service
	metrics        *metrics.Recorder
	maxPending     time.Duration
	artifactPrefix string
	logger         *slog.Logger
}

// New creates an engine.
func New(components Components, options ...Option) (*Engine, error) {
	if err := components.validate(); err != nil {
		return nil, err
	}
	ret := &Engine{
		Components: components,
		maxPending: DefaultMaxPendingLifetime,
		logger:     slog.Default().With("component", "workflow"),
	}
	for _, option := range options {
		option(ret)
	}
	return ret, nil
}

// Instance returns the persisted instance.
func (e *Engine) Instance(ctx context.Context, id string) (*model.Instance, error) {
	return e.Store.Load(ctx, id)
}

// Instances lists persisted instances.
func (e *Engine) Instances(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	return e.Store.List(ctx, parameters...)
}

// Recover advances instances left mid-step by a previous process, for
// example after a crash between two transitions. A suspended instance is
// resumed only when its reviewer notification was never confirmed; terminal
// instances are untouched. It must run before the process accepts traffic.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.recover", tracing.KindInternal)
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	var instances []*model.Instance
	instances, err = e.Store.List(ctx, dao.WithStates(model.StateStarted, model.StateAwaitingReport, model.StateAwaitingDecision, model.StateApproving, model.StateWaitlisting))
	if err != nil {
		return 0, err
	}
	var errs []error
	count := 0
	for _, instance := range instances {
		if instance.State == model.StateAwaitingDecision && !instance.AwaitingNotification() {
			continue
		}
		count++
		e.logger.Info("recovering instance", "id", instance.ID, "state", instance.State)
		if _, stepErr := e.advance(ctx, instance); stepErr != nil && !errors.Is(stepErr, model.ErrDownstream) {
			errs = append(errs, fmt.Errorf("instance %v: %w", instance.ID, stepErr))
		}
	}
	err = errors.Join(errs...)
	return count, err
}

// advance runs the automatic steps until the instance suspends or terminates.
func (e *Engine) advance(ctx context.Context, instance *model.Instance) (*model.Instance, error) {
	for {
		var err error
		next := instance
		suspends := false
		switch instance.State {
		case model.StateStarted:
			next, err = e.transition(ctx, instance.ID, dao.Expect(model.StateStarted), func(i *model.Instance) error {
				return i.MoveTo(model.StateAwaitingReport, clock.Now())
			})
		case model.StateAwaitingReport:
			next, err = e.requestDecision(ctx, instance)
			suspends = true
		case model.StateAwaitingDecision:
			if !instance.AwaitingNotification() {
				return instance, nil
			}
			next, err = e.reissue(ctx, instance)
			suspends = true
		case model.StateApproving, model.StateWaitlisting:
			next, err = e.complete(ctx, instance)
		default:
			return instance, nil
		}
		if err != nil {
			if errors.Is(err, dao.ErrConflict) {
				// another caller moved the instance, e.g. an administrative cancel
				current, loadErr := e.Store.Load(ctx, instance.ID)
				if loadErr != nil {
					return instance, errors.Join(err, loadErr)
				}
				e.logger.Info("instance changed concurrently", "id", instance.ID, "state", current.State)
				return current, nil
			}
			if next == nil {
				next = instance
			}
			return next, err
		}
		if suspends {
			return next, nil
		}
		instance = next
	}
}

// transition applies a CAS and emits logs, events and metrics for the change.
func (e *Engine) transition(ctx context.Context, id string, expect dao.Expectation, mutate dao.Mutation) (*model.Instance, error) {
	var from model.State
	next, err := e.Store.Transition(ctx, id, expect, func(i *model.Instance) error {
		from = i.State
		return mutate(i)
	})
	if err != nil {
		return nil, err
	}
	if from != next.State {
		e.logger.Info("instance transition", "id", id, "from", from, "to", next.State, "revision", next.Revision, "reason", next.Reason)
		e.events.Publish(ctx, event.TypeTransition, from, next)
		if next.State == model.StateFailed {
			e.metrics.Failure(ctx, metricReason(next.Reason))
		}
	}
	return next, nil
}

// fail moves instance to failed with reason, revoking its token. It returns
// the failed instance and a DownstreamError wrapping cause.
func (e *Engine) fail(ctx context.Context, instance *model.Instance, reason string, cause error, artifacts map[string]string) (*model.Instance, error) {
	var tokenHash string
	failed, err := e.transition(ctx, instance.ID, dao.Expect(instance.State), func(i *model.Instance) error {
		tokenHash = i.TokenHash
		for role, location := range artifacts {
			i.Artifacts[role] = location
		}
		return i.Fail(reason, clock.Now())
	})
	if err != nil {
		return instance, errors.Join(model.NewDownstreamError(reason, cause), err)
	}
	e.revoke(ctx, tokenHash)
	e.logger.Error("instance failed", "id", instance.ID, "from", failed.FailedFrom, "reason", reason, "error", cause)
	return failed, model.NewDownstreamError(reason, cause)
}

func (e *Engine) revoke(ctx context.Context, tokenHash string) {
	if tokenHash == "" {
		return
	}
	if err := e.Store.RevokeToken(ctx, tokenHash); err != nil {
		e.logger.Warn("failed to revoke token", "error", err)
	}
}

func metricReason(reason string) string {
	if strings.HasPrefix(reason, model.ReasonCancelledPrefix) {
		return "cancelled"
	}
	return reason
}
