// Package workflow defines the durable intake instance and its lifecycle.
package workflow

import (
	"time"

	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/service/identity"
	"github.com/viant/intake/service/scoring"
)

// Artifact roles.
const (
	ArtifactExport   = "export"
	ArtifactSummary  = "summary"
	ArtifactFollowUp = "followup"
)

// Instance is one workflow run for a unique submission.
type Instance struct {
	ID          string                 `json:"id"`
	Identity    identity.Identity      `json:"identity"`
	State       State                  `json:"state"`
	Submission  *submission.Submission `json:"submission,omitempty"`
	Score       *scoring.Result        `json:"score,omitempty"`
	Artifacts   map[string]string      `json:"artifacts,omitempty"`
	TokenHash   string                 `json:"tokenHash,omitempty"`
	Decision    Decision               `json:"decision,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	FailedFrom  State                  `json:"failedFrom,omitempty"`
	Revision    int                    `json:"revision"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	SuspendedAt *time.Time             `json:"suspendedAt,omitempty"`
	DeadlineAt  *time.Time             `json:"deadlineAt,omitempty"`
	NotifiedAt  *time.Time             `json:"notifiedAt,omitempty"`
	DecidedAt   *time.Time             `json:"decidedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}

// New creates a started instance.
func New(id string, ident identity.Identity, s *submission.Submission, now time.Time) *Instance {
	return &Instance{
		ID:         id,
		Identity:   ident,
		State:      StateStarted,
		Submission: s,
		Artifacts:  map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MoveTo changes state if the lifecycle allows it.
func (i *Instance) MoveTo(to State, now time.Time) error {
	if !CanTransition(i.State, to) {
		return &TransitionError{ID: i.ID, From: i.State, To: to}
	}
	i.State = to
	i.UpdatedAt = now
	if to.IsTerminal() {
		i.CompletedAt = &now
	}
	return nil
}

// Fail moves the instance to failed recording reason and the state it failed from.
func (i *Instance) Fail(reason string, now time.Time) error {
	from := i.State
	if err := i.MoveTo(StateFailed, now); err != nil {
		return err
	}
	i.FailedFrom = from
	i.Reason = reason
	i.TokenHash = ""
	return nil
}

// Suspend records the token hash and decision deadline.
func (i *Instance) Suspend(tokenHash string, deadline, now time.Time) {
	i.TokenHash = tokenHash
	i.SuspendedAt = &now
	i.DeadlineAt = &deadline
	i.NotifiedAt = nil
	i.UpdatedAt = now
}

// Notified records that the reviewer received the decision links.
func (i *Instance) Notified(now time.Time) {
	i.NotifiedAt = &now
	i.UpdatedAt = now
}

// AwaitingNotification reports whether a suspended instance was never
// confirmed as sent to the reviewer, e.g. after a crash before delivery.
func (i *Instance) AwaitingNotification() bool {
	return i.State == StateAwaitingDecision && i.NotifiedAt == nil
}

// Overdue reports whether a suspended instance passed its deadline.
func (i *Instance) Overdue(now time.Time) bool {
	return i.State == StateAwaitingDecision && i.DeadlineAt != nil && !now.Before(*i.DeadlineAt)
}

// Clone returns a copy safe to mutate. Submission and Score are immutable and shared.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	ret := *i
	ret.Artifacts = make(map[string]string, len(i.Artifacts))
	for k, v := range i.Artifacts {
		ret.Artifacts[k] = v
	}
	return &ret
}
