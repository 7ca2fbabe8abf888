package workflow

import (
	"errors"
	"fmt"
)

// ErrDownstream wraps artifact and notification failures.
var ErrDownstream = errors.New("downstream failure")

// ErrNotFound is returned when an instance does not exist.
var ErrNotFound = errors.New("instance not found")

// TransitionError reports a transition the lifecycle does not allow.
type TransitionError struct {
	ID   string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("instance %v: invalid transition %v -> %v", e.ID, e.From, e.To)
}

// DownstreamError records which step failed and the reason stored on the instance.
type DownstreamError struct {
	Reason string
	Err    error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%v: %v", e.Reason, e.Err)
}

func (e *DownstreamError) Unwrap() []error {
	return []error{ErrDownstream, e.Err}
}

// NewDownstreamError wraps err with a failure reason.
func NewDownstreamError(reason string, err error) error {
	return &DownstreamError{Reason: reason, Err: err}
}
