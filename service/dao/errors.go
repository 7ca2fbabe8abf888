package dao

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/intake/model/workflow"
)

// Common, reusable DAO errors. Callers detect them with errors.Is/As.
var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrDuplicate is returned by Create when an instance with the same id or
	// identity already exists.
	ErrDuplicate = errors.New("dao: duplicate")

	// ErrConflict is returned by Transition when the stored instance does not
	// match the expectation.
	ErrConflict = errors.New("dao: conflict")
)

// ConflictError carries the actual state of an instance that failed a
// compare-and-swap.
type ConflictError struct {
	ID       string
	Actual   workflow.State
	Expected []workflow.State
	Token    bool
}

func (e *ConflictError) Error() string {
	expected := make([]string, 0, len(e.Expected))
	for _, s := range e.Expected {
		expected = append(expected, string(s))
	}
	if e.Token {
		return fmt.Sprintf("dao: conflict: instance %v token mismatch in state %v", e.ID, e.Actual)
	}
	return fmt.Sprintf("dao: conflict: instance %v is %v, expected %v", e.ID, e.Actual, strings.Join(expected, "|"))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
